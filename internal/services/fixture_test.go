package services

import (
	"context"
	"sync"
	"testing"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/store/storetest"
	"github.com/indicadores/apiserver/types"
)

type fixture struct {
	mem          *storetest.Memory
	categories   *CategoryService
	indicators   *IndicatorService
	calculations *CalculationService
	users        *UserService
	publisher    *recordingPublisher

	admin policy.Caller
	alice policy.Caller
	bob   policy.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := storetest.New()
	pub := &recordingPublisher{}

	f := &fixture{
		mem:        mem,
		categories: NewCategoryService(mem.Categories(), mem.Indicators()),
		indicators: NewIndicatorService(mem.Indicators(), mem.Categories()),
		calculations: NewCalculationService(mem.Calculations(), mem.Indicators(),
			WithEvents(NewEventPublisher(pub, "calculation-events", nil)),
		),
		users:     NewUserService(mem.Users()),
		publisher: pub,
	}
	f.admin = f.seedUser(t, "Admin", "admin@x.com", types.RoleAdministrator)
	f.alice = f.seedUser(t, "Alice", "a@x.com", types.RoleUser)
	f.bob = f.seedUser(t, "Bob", "b@x.com", types.RoleUser)
	return f
}

func (f *fixture) seedUser(t *testing.T, name, email string, role types.Role) policy.Caller {
	t.Helper()
	u, err := f.mem.Users().Create(context.Background(), types.User{Name: name, Email: email, Role: role, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return policy.Caller{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (f *fixture) seedIndicator(t *testing.T) (types.Category, types.Indicator) {
	t.Helper()
	ctx := context.Background()
	c, err := f.categories.Create(ctx, f.admin, CategoryInput{Name: "Finance"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	i, err := f.indicators.Create(ctx, f.admin, IndicatorInput{Name: "Revenue", CategoryID: c.ID, Unit: "USD"})
	if err != nil {
		t.Fatalf("create indicator: %v", err)
	}
	return c, i
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %v", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("got %v (%v), want %v", got, err, kind)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, publishedMessage{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (p *recordingPublisher) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}
