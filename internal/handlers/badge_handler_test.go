package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhammadAslam635/referable-dev-sub002/internal/models"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/poller"
	"github.com/MuhammadAslam635/referable-dev-sub002/internal/services"
)

type stubBadgeService struct {
	unread      int
	unreadErr   error
	activity    services.ActivityCounts
	activityErr error
}

func (s *stubBadgeService) CountUnread(context.Context, int64) (int, error) {
	return s.unread, s.unreadErr
}

func (s *stubBadgeService) CountActivity(context.Context, int64) (services.ActivityCounts, error) {
	return s.activity, s.activityErr
}

func badgeTestApp(service *stubBadgeService) (*fiber.App, *poller.Coordinator) {
	coordinator := poller.NewCoordinator()
	handler := NewBadgeHandler(service, coordinator, time.Hour, time.Hour)

	app := fiber.New()
	withBusiness(app, 10)
	app.Get("/api/v1/badges", handler.GetBadges)
	return app, coordinator
}

func getBadges(t *testing.T, app *fiber.App) models.BadgeCounts {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Badges models.BadgeCounts `json:"badges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return body.Badges
}

func waitForSnapshots(t *testing.T, coordinator *poller.Coordinator, keys ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready := true
		for _, key := range keys {
			if _, ok := coordinator.Get(key); !ok {
				ready = false
				break
			}
		}
		if ready {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshots never arrived")
}

func TestGetBadgesServesPolledCounts(t *testing.T) {
	service := &stubBadgeService{
		unread:   3,
		activity: services.ActivityCounts{NewClients: 2, PendingReferrals: 5},
	}
	app, coordinator := badgeTestApp(service)
	defer coordinator.Stop()

	// The first request lazily subscribes both keys; the initial fetches
	// run asynchronously, so wait for the snapshots before asserting.
	getBadges(t, app)
	waitForSnapshots(t, coordinator, "badges:unread:10", "badges:activity:10")

	badges := getBadges(t, app)
	if badges.UnreadMessages != 3 || badges.NewClients != 2 || badges.PendingReferrals != 5 {
		t.Fatalf("unexpected badges: %+v", badges)
	}
}

func TestGetBadgesDegradesPerFailingSource(t *testing.T) {
	service := &stubBadgeService{
		unread:      3,
		activityErr: context.DeadlineExceeded,
	}
	app, coordinator := badgeTestApp(service)
	defer coordinator.Stop()

	getBadges(t, app)
	waitForSnapshots(t, coordinator, "badges:unread:10")

	// The activity source keeps failing, so its badges sit at zero while
	// the unread badge still renders.
	badges := getBadges(t, app)
	if badges.UnreadMessages != 3 {
		t.Fatalf("expected the unread badge served, got %+v", badges)
	}
	if badges.NewClients != 0 || badges.PendingReferrals != 0 {
		t.Fatalf("expected activity badges degraded to zero, got %+v", badges)
	}
}

func TestGetBadgesSubscribesOncePerBusiness(t *testing.T) {
	service := &stubBadgeService{unread: 1}
	app, coordinator := badgeTestApp(service)
	defer coordinator.Stop()

	getBadges(t, app)
	waitForSnapshots(t, coordinator, "badges:unread:10")
	getBadges(t, app)
	getBadges(t, app)

	if !coordinator.Has("badges:unread:10") || !coordinator.Has("badges:activity:10") {
		t.Fatal("expected both badge keys subscribed")
	}
}

func TestGetBadgesRequiresBusinessScope(t *testing.T) {
	coordinator := poller.NewCoordinator()
	defer coordinator.Stop()
	handler := NewBadgeHandler(&stubBadgeService{}, coordinator, time.Hour, time.Hour)

	app := fiber.New()
	app.Get("/api/v1/badges", handler.GetBadges)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/badges", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
