package rfqs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

var (
	buyer  = domain.Caller{UserID: "buyer-1", Role: domain.RoleShippingCompany}
	other  = domain.Caller{UserID: "buyer-2", Role: domain.RoleShippingCompany}
	agent  = domain.Caller{UserID: "agent-1", Role: domain.RoleAgent}
	vendor = domain.Caller{UserID: "vendor-1", Role: domain.RoleVendor}
	crew   = domain.Caller{UserID: "crew-1", Role: domain.RoleCrew}
)

type fakeRFQStore struct {
	rfqs      map[string]storage.RFQ
	lastQuery storage.RFQQuery
	createErr error
}

func newFakeRFQStore(rfqs ...storage.RFQ) *fakeRFQStore {
	store := &fakeRFQStore{rfqs: map[string]storage.RFQ{}}
	for _, rfq := range rfqs {
		store.rfqs[rfq.ID] = rfq
	}
	return store
}

func (s *fakeRFQStore) CreateRFQ(_ context.Context, rfq storage.RFQ) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.rfqs[rfq.ID] = rfq
	return nil
}

func (s *fakeRFQStore) GetRFQ(_ context.Context, id string) (storage.RFQ, error) {
	rfq, ok := s.rfqs[id]
	if !ok {
		return storage.RFQ{}, storage.ErrNotFound
	}
	return rfq, nil
}

func (s *fakeRFQStore) ListRFQs(_ context.Context, query storage.RFQQuery) ([]storage.RFQ, error) {
	s.lastQuery = query
	out := make([]storage.RFQ, 0, len(s.rfqs))
	for _, rfq := range s.rfqs {
		if query.BuyerUserID != "" && rfq.BuyerUserID != query.BuyerUserID {
			continue
		}
		if len(query.Ports) > 0 && !servesPort(query.Ports, rfq.Port) {
			continue
		}
		out = append(out, rfq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeVendors map[string]storage.VendorProfile

func (f fakeVendors) GetVendorProfile(_ context.Context, userID string) (storage.VendorProfile, error) {
	profile, ok := f[userID]
	if !ok {
		return storage.VendorProfile{}, storage.ErrNotFound
	}
	return profile, nil
}

func newTestService(store storage.RFQStore, vendors VendorProfiles) *Service {
	svc := NewService(store, vendors)
	svc.clock = func() time.Time { return time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC) }
	svc.newID = func() (string, error) { return "rfq-new", nil }
	return svc
}

func ptr[T any](v T) *T { return &v }

func validInput() CreateInput {
	return CreateInput{
		Title: " Engine spares ",
		Port:  "Singapore",
		Items: []ItemInput{
			{Name: "Pipe", Quantity: ptr(decimal.NewFromInt(10)), Unit: "Meters", Essential: true},
			{Name: "Valve"},
		},
		Tags: []string{"engine", " Engine ", ""},
	}
}

func TestCreateStoresNormalizedRFQ(t *testing.T) {
	store := newFakeRFQStore()
	svc := newTestService(store, nil)

	rfq, err := svc.Create(context.Background(), buyer, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rfq.ID != "rfq-new" || rfq.BuyerUserID != "buyer-1" || rfq.Title != "Engine spares" {
		t.Fatalf("unexpected rfq header: %+v", rfq)
	}
	if rfq.Items[0].Unit != "meters" || !rfq.Items[0].Essential {
		t.Fatalf("item[0] = %+v", rfq.Items[0])
	}
	if !rfq.Items[1].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("default quantity = %s, want 1", rfq.Items[1].Quantity)
	}
	if len(rfq.Tags) != 1 || rfq.Tags[0] != "engine" {
		t.Fatalf("tags = %v, want [engine]", rfq.Tags)
	}
	if _, ok := store.rfqs["rfq-new"]; !ok {
		t.Fatal("expected rfq to be stored")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*CreateInput)
		code  apperrors.Code
		field string
	}{
		{"missing title", func(in *CreateInput) { in.Title = " " }, apperrors.CodeInvalidArgument, "title"},
		{"missing port", func(in *CreateInput) { in.Port = "" }, apperrors.CodeInvalidArgument, "port"},
		{"no items", func(in *CreateInput) { in.Items = nil }, apperrors.CodeRFQItemsRequired, "required_items"},
		{"unnamed item", func(in *CreateInput) { in.Items[1].Name = "" }, apperrors.CodeInvalidArgument, "required_items[1].name"},
		{"negative quantity", func(in *CreateInput) { in.Items[0].Quantity = ptr(decimal.NewFromInt(-1)) }, apperrors.CodeInvalidAmount, "required_items[0].quantity"},
		{"unknown unit", func(in *CreateInput) { in.Items[0].Unit = "furlongs" }, apperrors.CodeInvalidArgument, "required_items[0].unit"},
		{"zero deadline", func(in *CreateInput) { in.DeadlineDays = ptr(0) }, apperrors.CodeInvalidArgument, "deadline_days"},
		{"negative budget", func(in *CreateInput) { in.BudgetMin = ptr(decimal.NewFromInt(-5)) }, apperrors.CodeInvalidAmount, "budget_min"},
		{"inverted budget", func(in *CreateInput) {
			in.BudgetMin = ptr(decimal.NewFromInt(500))
			in.BudgetMax = ptr(decimal.NewFromInt(100))
		}, apperrors.CodeRFQBudgetRangeInvalid, "budget_max"},
	}
	svc := newTestService(newFakeRFQStore(), nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			_, err := svc.Create(context.Background(), buyer, in)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Fatalf("code = %s, want %s (err=%v)", got, tc.code, err)
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) || appErr.Metadata["Field"] != tc.field {
				t.Fatalf("field metadata = %v, want %q", appErr, tc.field)
			}
		})
	}
}

func TestCreateRoleGate(t *testing.T) {
	svc := newTestService(newFakeRFQStore(), nil)
	if _, err := svc.Create(context.Background(), vendor, validInput()); apperrors.KindOf(err) != apperrors.KindForbidden {
		t.Fatalf("vendor create kind = %s, want forbidden", apperrors.KindOf(err))
	}
	if _, err := svc.Create(context.Background(), domain.Caller{}, validInput()); apperrors.KindOf(err) != apperrors.KindUnauthenticated {
		t.Fatalf("anonymous create kind = %s, want unauthenticated", apperrors.KindOf(err))
	}
	if _, err := svc.Create(context.Background(), agent, validInput()); err != nil {
		t.Fatalf("agent create: %v", err)
	}
}

func TestCreateStorageFailureIsGeneric(t *testing.T) {
	store := newFakeRFQStore()
	store.createErr = errors.New("disk I/O error")
	svc := newTestService(store, nil)
	_, err := svc.Create(context.Background(), buyer, validInput())
	if apperrors.KindOf(err) != apperrors.KindStorageFailure {
		t.Fatalf("kind = %s, want storage failure", apperrors.KindOf(err))
	}
	if strings.Contains(apperrors.PublicMessage(err), "disk") {
		t.Fatalf("public message leaks cause: %q", apperrors.PublicMessage(err))
	}
}

func TestGetHidesRFQsOutsideCallerScope(t *testing.T) {
	rfq := storage.RFQ{ID: "rfq-1", BuyerUserID: "buyer-1", Port: "Singapore"}
	vendors := fakeVendors{
		"vendor-1": {UserID: "vendor-1", PortsServed: []string{"singapore"}},
		"vendor-2": {UserID: "vendor-2", PortsServed: []string{"Rotterdam"}},
		"vendor-3": {UserID: "vendor-3"},
	}
	svc := newTestService(newFakeRFQStore(rfq), vendors)

	tests := []struct {
		name    string
		caller  domain.Caller
		visible bool
	}{
		{"owner", buyer, true},
		{"other buyer", other, false},
		{"agent", agent, true},
		{"vendor serving port", vendor, true},
		{"vendor elsewhere", domain.Caller{UserID: "vendor-2", Role: domain.RoleVendor}, false},
		{"vendor without ports", domain.Caller{UserID: "vendor-3", Role: domain.RoleVendor}, true},
		{"vendor without profile", domain.Caller{UserID: "vendor-9", Role: domain.RoleVendor}, true},
		{"crew", crew, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Get(context.Background(), tc.caller, "rfq-1")
			if tc.visible && err != nil {
				t.Fatalf("get: %v", err)
			}
			if !tc.visible && apperrors.CodeOf(err) != apperrors.CodeRFQNotFound {
				t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeRFQNotFound)
			}
		})
	}

	if _, err := svc.Get(context.Background(), agent, "missing"); apperrors.CodeOf(err) != apperrors.CodeRFQNotFound {
		t.Fatalf("missing rfq code = %s", apperrors.CodeOf(err))
	}
}

func TestListScopesByRole(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeRFQStore(
		storage.RFQ{ID: "rfq-1", BuyerUserID: "buyer-1", Port: "Singapore", CreatedAt: base},
		storage.RFQ{ID: "rfq-2", BuyerUserID: "buyer-2", Port: "Rotterdam", CreatedAt: base.Add(time.Hour)},
		storage.RFQ{ID: "rfq-3", BuyerUserID: "buyer-1", Port: "Rotterdam", CreatedAt: base.Add(2 * time.Hour)},
	)
	vendors := fakeVendors{"vendor-1": {UserID: "vendor-1", PortsServed: []string{"Rotterdam"}}}
	svc := newTestService(store, vendors)

	tests := []struct {
		name   string
		caller domain.Caller
		want   []string
	}{
		{"buyer", buyer, []string{"rfq-3", "rfq-1"}},
		{"agent", agent, []string{"rfq-3", "rfq-2", "rfq-1"}},
		{"vendor", vendor, []string{"rfq-3", "rfq-2"}},
		{"vendor without profile", domain.Caller{UserID: "vendor-9", Role: domain.RoleVendor}, []string{"rfq-3", "rfq-2", "rfq-1"}},
		{"crew", crew, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rfqs, err := svc.List(context.Background(), tc.caller)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := make([]string, 0, len(rfqs))
			for _, rfq := range rfqs {
				got = append(got, rfq.ID)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("ids = %v, want %v", got, tc.want)
			}
		})
	}
}
