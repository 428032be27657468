package businessflow

import (
	"context"

	"github.com/udyogsetu/messaging-core/app/dto"
)

// TriggerFlow is the business-event facade: platform verticals emit events
// and the flow resolves the catalog template and dispatches it.
type TriggerFlow interface {
	HandleBusinessEvent(ctx context.Context, req *dto.BusinessEventRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error)
}

// TriggerFlowImpl implements the trigger business flow
type TriggerFlowImpl struct {
	dispatch MessageDispatchFlow
}

// NewTriggerFlow creates a new trigger flow instance
func NewTriggerFlow(dispatch MessageDispatchFlow) TriggerFlow {
	return &TriggerFlowImpl{dispatch: dispatch}
}

// HandleBusinessEvent maps (vertical, event) onto a catalog template and
// hands the send to the dispatch flow. The template must already be
// registered and approved under its catalog name; dispatch enforces that.
func (s *TriggerFlowImpl) HandleBusinessEvent(ctx context.Context, req *dto.BusinessEventRequest, metadata *ClientMetadata) (*dto.SendMessageResponse, error) {
	entry, ok := GetTemplateByTrigger(req.Vertical, req.Event)
	if !ok {
		return &dto.SendMessageResponse{
			Success:      false,
			ErrorCode:    CodeTemplateNotFound,
			ErrorMessage: ErrNoTemplateForTrigger.Error(),
		}, nil
	}

	sendReq := &dto.SendMessageRequest{
		TenantUUID:     req.TenantUUID,
		To:             req.To,
		Type:           "template",
		TemplateName:   entry.TemplateName,
		TemplateParams: req.Params,
	}
	return s.dispatch.SendMessage(ctx, sendReq, metadata)
}
