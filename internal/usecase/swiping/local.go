package usecase_swiping

import (
	"context"

	"github.com/humanbelnik/kinomatch/internal/model"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
)

// HubFeed subscribes straight to an in-process hub.
type HubFeed struct {
	Hub *service_fanout.Hub
}

func (f HubFeed) Subscribe(_ context.Context, sessionID model.SessionID) (Subscription, error) {
	return f.Hub.Subscribe(sessionID), nil
}
