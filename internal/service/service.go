package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/HAB39/3laNota/internal/cache"
	"github.com/HAB39/3laNota/internal/dates"
	"github.com/HAB39/3laNota/internal/domain"
	"github.com/HAB39/3laNota/internal/metrics"
	"github.com/HAB39/3laNota/internal/report"
	"github.com/HAB39/3laNota/internal/store"
	"github.com/HAB39/3laNota/internal/xid"
)

type Options struct {
	// Location decides which calendar day "today" is.
	Location *time.Location
	Now      func() time.Time
	Cache    cache.ReportCache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	PageSize int
	NewID    func() string
}

type Service struct {
	ledger   *store.Ledger
	loc      *time.Location
	now      func() time.Time
	cache    cache.ReportCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	pageSize int
	newID    func() string

	// revision changes on every write so cached reports are keyed to the
	// ledger state they were computed from.
	revision atomic.Int64
}

func New(ledger *store.Ledger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.PageSize < 1 {
		opts.PageSize = domain.DefaultPageSize
	}
	if opts.NewID == nil {
		opts.NewID = xid.New
	}

	s := &Service{
		ledger:   ledger,
		loc:      opts.Location,
		now:      opts.Now,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		pageSize: opts.PageSize,
		newID:    opts.NewID,
	}
	s.revision.Store(time.Now().UnixNano())
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

func (s *Service) today() time.Time {
	return dates.Today(s.loc, s.now())
}

func (s *Service) touch() {
	s.revision.Add(1)
}

func (s *Service) pageArgs(page int, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.pageSize
	}
	return page, pageSize
}

func (s *Service) ListClients(ctx context.Context, query string, page int, pageSize int) (domain.Page[domain.Client], error) {
	clients, err := s.ledger.Clients().List(ctx)
	if err != nil {
		return domain.Page[domain.Client]{}, err
	}
	clients = report.FilterClients(clients, query)
	slices.SortStableFunc(clients, func(a, b domain.Client) int {
		return domain.CompareIDs(string(a.ID), string(b.ID))
	})
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.Paginate(clients, page, pageSize), nil
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return s.ledger.Clients().Get(ctx, domain.NormalizeID(id))
}

func (s *Service) AddClient(ctx context.Context, in domain.ClientInput) (domain.Client, error) {
	client, err := validateClient(in)
	if err != nil {
		return domain.Client{}, err
	}

	err = s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if err := checkClientUnique(ctx, tx, client); err != nil {
			return err
		}
		id, err := freeID(ctx, tx.Clients(), s.newID)
		if err != nil {
			return err
		}
		client.ID = domain.ID(id)
		_, err = tx.Clients().Put(ctx, client)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.touch()
	return client, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, in domain.ClientInput) (domain.Client, error) {
	client, err := validateClient(in)
	if err != nil {
		return domain.Client{}, err
	}
	client.ID = domain.ID(domain.NormalizeID(id))

	err = s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if _, err := tx.Clients().Get(ctx, string(client.ID)); err != nil {
			return err
		}
		if err := checkClientUnique(ctx, tx, client); err != nil {
			return err
		}
		_, err := tx.Clients().Put(ctx, client)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.touch()
	return client, nil
}

// DeleteClient removes the client record. Their sales stay in the ledger and
// show up under an unknown client.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	key := domain.NormalizeID(id)
	err := s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if _, err := tx.Clients().Get(ctx, key); err != nil {
			return err
		}
		return tx.Clients().Delete(ctx, key)
	})
	if err != nil {
		return err
	}
	s.touch()
	return nil
}

func validateClient(in domain.ClientInput) (domain.Client, error) {
	name := strings.TrimSpace(in.Name)
	mobile := strings.TrimSpace(in.Mobile)
	if name == "" || mobile == "" || strings.TrimSpace(in.LastPaymentDate) == "" {
		return domain.Client{}, domain.Invalid(domain.ErrInvalidInput, "name, mobile and last payment date are required")
	}
	if !domain.ValidMobile(mobile) {
		return domain.Client{}, domain.Invalid(domain.ErrInvalidInput, "mobile %q is not a valid mobile number", mobile)
	}
	paidOn, ok := dates.Parse(in.LastPaymentDate)
	if !ok {
		return domain.Client{}, domain.Invalid(domain.ErrInvalidInput, "last payment date %q is not a date", in.LastPaymentDate)
	}
	return domain.Client{Name: name, Mobile: mobile, LastPaymentDate: dates.Format(paidOn)}, nil
}

// checkClientUnique rejects a name (ignoring case) or mobile already used by
// another client.
func checkClientUnique(ctx context.Context, tx *store.Tx, client domain.Client) error {
	existing, err := tx.Clients().List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if client.ID != "" && domain.SameID(other.ID, client.ID) {
			continue
		}
		if domain.SameName(other.Name, client.Name) {
			return domain.Invalid(domain.ErrDuplicate, "a client named %q already exists", other.Name)
		}
		if other.Mobile == client.Mobile {
			return domain.Invalid(domain.ErrDuplicate, "mobile %s already belongs to %q", client.Mobile, other.Name)
		}
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context, page int, pageSize int) (domain.Page[domain.Product], error) {
	products, err := s.ledger.Products().List(ctx)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		return domain.CompareIDs(string(a.ID), string(b.ID))
	})
	page, pageSize = s.pageArgs(page, pageSize)
	return domain.Paginate(products, page, pageSize), nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.ledger.Products().Get(ctx, domain.NormalizeID(id))
}

func (s *Service) AddProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	product := domain.Product{Name: strings.TrimSpace(in.Name)}
	if product.Name == "" {
		return domain.Product{}, domain.Invalid(domain.ErrInvalidInput, "product name is required")
	}

	err := s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if err := checkProductUnique(ctx, tx, product); err != nil {
			return err
		}
		id, err := freeID(ctx, tx.Products(), s.newID)
		if err != nil {
			return err
		}
		product.ID = domain.ID(id)
		_, err = tx.Products().Put(ctx, product)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.touch()
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	product := domain.Product{ID: domain.ID(domain.NormalizeID(id)), Name: strings.TrimSpace(in.Name)}
	if product.Name == "" {
		return domain.Product{}, domain.Invalid(domain.ErrInvalidInput, "product name is required")
	}

	err := s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if _, err := tx.Products().Get(ctx, string(product.ID)); err != nil {
			return err
		}
		if err := checkProductUnique(ctx, tx, product); err != nil {
			return err
		}
		_, err := tx.Products().Put(ctx, product)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.touch()
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	key := domain.NormalizeID(id)
	err := s.ledger.Atomic(ctx, func(tx *store.Tx) error {
		if _, err := tx.Products().Get(ctx, key); err != nil {
			return err
		}
		return tx.Products().Delete(ctx, key)
	})
	if err != nil {
		return err
	}
	s.touch()
	return nil
}

func checkProductUnique(ctx context.Context, tx *store.Tx, product domain.Product) error {
	existing, err := tx.Products().List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if product.ID != "" && domain.SameID(other.ID, product.ID) {
			continue
		}
		if other.Name == product.Name {
			return domain.Invalid(domain.ErrDuplicate, "a product named %q already exists", product.Name)
		}
	}
	return nil
}

// freeID draws ids until one is not taken in coll.
func freeID[T store.Record](ctx context.Context, coll store.Collection[T], next func() string) (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		id := next()
		_, err := coll.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
		log.Printf("[service] WARN: %s id %s already taken, drawing another", coll.Name(), id)
	}
	return "", fmt.Errorf("no free %s id", coll.Name())
}
