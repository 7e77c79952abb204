package sse

import (
	"time"

	"github.com/GTDGit/digistore/internal/models"
)

// Notifier is the interface services use to emit session events.
type Notifier interface {
	NotifyCatalogChanged(action string, productID int)
	NotifyCartChanged(snapshot models.CartSnapshot)
	NotifyOrderCompleted(order *models.Order)
	NotifyEntitlementGranted(ent *models.Entitlement)
	NotifyDownloadRecorded(ent *models.Entitlement)
}

// HubNotifier implements Notifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyCatalogChanged(action string, productID int) {
	n.send(&Event{Event: EventCatalogChanged, Action: action, ProductID: productID})
}

func (n *HubNotifier) NotifyCartChanged(snapshot models.CartSnapshot) {
	count := 0
	for _, it := range snapshot.Items {
		count += it.Quantity
	}
	total := snapshot.Total
	n.send(&Event{Event: EventCartChanged, ItemCount: &count, Total: &total})
}

func (n *HubNotifier) NotifyOrderCompleted(order *models.Order) {
	count := len(order.Items)
	total := order.Total
	n.send(&Event{Event: EventOrderCompleted, OrderID: order.ID, ItemCount: &count, Total: &total})
}

func (n *HubNotifier) NotifyEntitlementGranted(ent *models.Entitlement) {
	n.send(entitlementEvent(EventEntitlementGranted, ent))
}

func (n *HubNotifier) NotifyDownloadRecorded(ent *models.Entitlement) {
	n.send(entitlementEvent(EventDownloadRecorded, ent))
}

func (n *HubNotifier) send(ev *Event) {
	if n.hub.ClientCount() == 0 {
		return
	}
	ev.Timestamp = time.Now()
	n.hub.Broadcast(ev)
}

func entitlementEvent(eventType EventType, ent *models.Entitlement) *Event {
	count, limit := ent.DownloadCount, ent.MaxDownloads
	return &Event{
		Event:         eventType,
		ProductID:     ent.ProductID,
		OrderID:       ent.OrderID,
		DownloadCount: &count,
		MaxDownloads:  &limit,
	}
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (n *NopNotifier) NotifyCatalogChanged(action string, productID int) {}
func (n *NopNotifier) NotifyCartChanged(snapshot models.CartSnapshot)    {}
func (n *NopNotifier) NotifyOrderCompleted(order *models.Order)          {}
func (n *NopNotifier) NotifyEntitlementGranted(ent *models.Entitlement)  {}
func (n *NopNotifier) NotifyDownloadRecorded(ent *models.Entitlement)    {}
