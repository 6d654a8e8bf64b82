package bridge

import (
	"errors"
	"fmt"

	"github.com/lydakis/trajbridge/internal/engine"
	"github.com/tidwall/gjson"
)

// ErrUnexpectedResult reports a prediction result missing the path the
// requested response shape reads.
var ErrUnexpectedResult = errors.New("unexpected prediction result")

// guidanceStage is the prediction stage whose final point guidance mode returns.
const guidanceStage = 1

// Shape builds the response for env from the engine result:
//
//	include_metadata             -> the result, verbatim
//	is_guidance                  -> [ prediction[1].trajectory[last] ]
//	neither                      -> prediction, verbatim
func Shape(res engine.Result, env *Envelope) ([]byte, error) {
	if env.IncludeMetadata {
		return res, nil
	}

	prediction := gjson.GetBytes(res, "prediction")
	if !prediction.IsArray() {
		return nil, fmt.Errorf("%w: missing prediction array", ErrUnexpectedResult)
	}
	if !env.IsGuidance {
		return []byte(prediction.Raw), nil
	}

	stages := prediction.Array()
	if len(stages) <= guidanceStage {
		return nil, fmt.Errorf("%w: prediction has %d stages, guidance needs %d", ErrUnexpectedResult, len(stages), guidanceStage+1)
	}
	trajectory := stages[guidanceStage].Get("trajectory")
	if !trajectory.IsArray() {
		return nil, fmt.Errorf("%w: prediction[%d] has no trajectory", ErrUnexpectedResult, guidanceStage)
	}
	points := trajectory.Array()
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: prediction[%d].trajectory is empty", ErrUnexpectedResult, guidanceStage)
	}

	last := points[len(points)-1].Raw
	out := make([]byte, 0, len(last)+2)
	out = append(out, '[')
	out = append(out, last...)
	out = append(out, ']')
	return out, nil
}
