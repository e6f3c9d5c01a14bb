package router

import (
	"errors"
	"fmt"

	"carsync/internal/models"
	"carsync/internal/validation"
)

// ErrInvalidTarget is returned when a notification points off-site.
var ErrInvalidTarget = errors.New("invalid notification target")

const (
	notificationIcon  = "/static/images/icons/icon-192x192.png"
	notificationBadge = "/static/images/icons/icon-72x72.png"
)

// BuildNotification turns a push payload into the notification pages show.
func BuildNotification(p models.PushPayload) *models.Notification {
	tag := p.Tag
	if tag == "" {
		tag = "default"
	}
	return &models.Notification{
		Title: p.Title,
		Body:  p.Body,
		Icon:  notificationIcon,
		Badge: notificationBadge,
		Data:  p.Data,
		Actions: []models.NotificationAction{
			{Action: models.ActionView, Title: "Visualizza", Icon: "/static/images/icons/action-view.png"},
			{Action: models.ActionDismiss, Title: "Ignora", Icon: "/static/images/icons/action-dismiss.png"},
		},
		RequireInteraction: true,
		Tag:                tag,
	}
}

// Push fans a notification out to every page. A nil payload is ignored.
func (r *Router) Push(p *models.PushPayload) (*models.Notification, int) {
	if p == nil {
		return nil, 0
	}
	n := BuildNotification(*p)
	if r.clients == nil {
		return n, 0
	}
	delivered := r.clients.Broadcast(models.ClientMessage{
		Type:         models.ClientNotification,
		Timestamp:    r.now().UnixMilli(),
		Notification: n,
	})
	return n, delivered
}

// NotificationClick resolves a click. For the view action an attached page
// showing the target is focused; otherwise the reply asks the caller to
// open the target in a new window. Other actions only close the
// notification.
func (r *Router) NotificationClick(click models.NotificationClick) (models.ClickResponse, error) {
	if click.Action != models.ActionView {
		return models.ClickResponse{Action: click.Action}, nil
	}

	target := click.TargetURL()
	if ok, msg := validation.ValidateTargetPath(target); !ok {
		return models.ClickResponse{}, fmt.Errorf("%w: %s", ErrInvalidTarget, msg)
	}

	resp := models.ClickResponse{Action: click.Action, URL: target}
	if r.clients != nil && r.clients.Focus(target, r.now().UnixMilli()) {
		resp.Focused = true
		return resp, nil
	}
	resp.Opened = true
	return resp, nil
}
