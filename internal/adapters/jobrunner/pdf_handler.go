package jobrunner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// handleSpecSheetJob loads the property referenced by the payload and renders
// its spec sheet PDF. The property row is read at execution time so the
// document reflects current listing data.
func (r *Runner) handleSpecSheetJob(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	payload, err := model.DecodeSpecSheetPayload(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode spec sheet payload: %w", err)
	}

	property, err := r.properties.GetByID(ctx, payload.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("load property %s: %w", payload.PropertyID, err)
	}

	path, err := r.renderer.RenderSpecSheet(ctx, property)
	if err != nil {
		return nil, fmt.Errorf("render spec sheet for property %s: %w", property.ID, err)
	}

	result, err := json.Marshal(&model.SpecSheetResult{FilePath: path})
	if err != nil {
		return nil, fmt.Errorf("encode spec sheet result: %w", err)
	}
	return result, nil
}
