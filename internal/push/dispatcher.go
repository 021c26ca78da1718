package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/store"
)

// ErrNoDevices is returned when a member has nowhere to receive notifications.
var ErrNoDevices = errors.New("member has no registered devices")

// Result counts deliveries for one member across all channels.
type Result struct {
	Sent   int
	Failed int
}

// Notifier delivers a payload to every device a member registered.
type Notifier interface {
	Notify(ctx context.Context, groupID string, member model.Member, payload Payload) (Result, error)
}

// WebSender delivers a payload to one browser subscription.
type WebSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Dispatcher fans a notification out to a member's FCM tokens and web push
// subscriptions, pruning the ones the push services report as gone. It must
// not be called from inside a GroupStore.Update callback.
type Dispatcher struct {
	fcm    TokenSender
	web    WebSender
	push   *store.PushStore
	groups *store.GroupStore
	logger *slog.Logger
}

// NewDispatcher wires the delivery channels. Either sender may be nil when
// that channel is not configured.
func NewDispatcher(fcm TokenSender, web WebSender, pushStore *store.PushStore, groupStore *store.GroupStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		fcm:    fcm,
		web:    web,
		push:   pushStore,
		groups: groupStore,
		logger: logger.With("component", "push"),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, groupID string, member model.Member, payload Payload) (Result, error) {
	var subs []model.PushSubscription
	if d.web != nil {
		var err error
		subs, err = d.push.ListByMember(groupID, member.ID)
		if err != nil {
			return Result{}, err
		}
	}

	tokens := member.DeviceTokens
	if d.fcm == nil {
		tokens = nil
	}
	if len(tokens) == 0 && len(subs) == 0 {
		return Result{}, ErrNoDevices
	}

	var res Result
	if len(tokens) > 0 {
		mr, err := d.fcm.SendMulticast(ctx, tokens, payload)
		if err != nil {
			d.logger.Error("fcm send", "group_id", groupID, "member_id", member.ID, "error", err)
			res.Failed += len(tokens)
		} else {
			res.Sent += mr.SuccessCount
			res.Failed += len(mr.Failed)
			d.pruneTokens(groupID, member.ID, mr.Dead)
		}
	}

	for i := range subs {
		sub := &subs[i]
		err := d.web.Send(ctx, sub, payload)
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, ErrExpired):
			res.Failed++
			if err := d.push.DeleteByEndpoint(sub.Endpoint); err != nil {
				d.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
			}
		default:
			res.Failed++
			d.logger.Warn("web push failed", "id", sub.ID, "error", err)
		}
	}
	return res, nil
}

func (d *Dispatcher) pruneTokens(groupID, memberID string, dead []string) {
	if len(dead) == 0 {
		return
	}
	_, err := d.groups.Update(groupID, func(g *model.Group) error {
		if m := g.Member(memberID); m != nil {
			m.RemoveDeviceTokens(dead)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("prune device tokens", "group_id", groupID, "member_id", memberID, "error", err)
		return
	}
	d.logger.Info("pruned device tokens", "group_id", groupID, "member_id", memberID, "count", len(dead))
}
