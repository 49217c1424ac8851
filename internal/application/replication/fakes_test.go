package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/catalogmirror/backend/internal/domain/catalog"
	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/domain/mirror"
	"github.com/catalogmirror/backend/internal/domain/platform"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type memShops struct {
	shops   map[uuid.UUID]*mirror.Shop
	targets map[uuid.UUID][]uuid.UUID
}

func newMemShops(shops ...*mirror.Shop) *memShops {
	s := &memShops{shops: map[uuid.UUID]*mirror.Shop{}, targets: map[uuid.UUID][]uuid.UUID{}}
	for _, sh := range shops {
		s.shops[sh.ID] = sh
	}
	return s
}

func (s *memShops) connect(from, to *mirror.Shop) {
	s.targets[from.ID] = append(s.targets[from.ID], to.ID)
}

func (s *memShops) FindByID(_ context.Context, id uuid.UUID) (*mirror.Shop, error) {
	sh, ok := s.shops[id]
	if !ok {
		return nil, mirror.ErrShopNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s *memShops) FindByDomain(_ context.Context, domain string) (*mirror.Shop, error) {
	for _, sh := range s.shops {
		if sh.Domain == domain {
			cp := *sh
			return &cp, nil
		}
	}
	return nil, mirror.ErrShopNotFound
}

func (s *memShops) FindAll(_ context.Context) ([]mirror.Shop, error) {
	out := make([]mirror.Shop, 0, len(s.shops))
	for _, sh := range s.shops {
		out = append(out, *sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (s *memShops) FindActiveTargets(_ context.Context, sourceShopID uuid.UUID) ([]mirror.Shop, error) {
	var out []mirror.Shop
	for _, id := range s.targets[sourceShopID] {
		if sh := s.shops[id]; sh != nil && sh.IsActive {
			out = append(out, *sh)
		}
	}
	return out, nil
}

type memProducts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]mirror.ProductMirror
}

func newMemProducts() *memProducts {
	return &memProducts{rows: map[uuid.UUID]mirror.ProductMirror{}}
}

func (s *memProducts) FindOne(_ context.Context, src uuid.UUID, pid int64, dst uuid.UUID) (*mirror.ProductMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pm := range s.rows {
		if pm.SourceShopID == src && pm.SourceProductID == pid && pm.TargetShopID == dst {
			cp := pm
			return &cp, nil
		}
	}
	return nil, mirror.ErrProductMirrorNotFound
}

func (s *memProducts) FindBySourceProduct(_ context.Context, src uuid.UUID, pid int64) ([]mirror.ProductMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mirror.ProductMirror
	for _, pm := range s.rows {
		if pm.SourceShopID == src && pm.SourceProductID == pid {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (s *memProducts) Save(_ context.Context, m *mirror.ProductMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pm := range s.rows {
		if pm.SourceShopID == m.SourceShopID && pm.SourceProductID == m.SourceProductID && pm.TargetShopID == m.TargetShopID {
			m.ID = id
			if m.TargetProductGID == "" {
				m.TargetProductGID = pm.TargetProductGID
			}
		}
	}
	s.rows[m.ID] = *m
	return nil
}

func (s *memProducts) UpdateSnapshot(_ context.Context, id uuid.UUID, snap *catalog.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.rows[id]
	if !ok {
		return mirror.ErrProductMirrorNotFound
	}
	pm.LastSnapshot = snap
	s.rows[id] = pm
	return nil
}

func (s *memProducts) only(t *testing.T) mirror.ProductMirror {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.rows, 1)
	for _, pm := range s.rows {
		return pm
	}
	return mirror.ProductMirror{}
}

type memVariants struct {
	mu   sync.Mutex
	rows map[uuid.UUID]mirror.VariantMirror
}

func newMemVariants() *memVariants {
	return &memVariants{rows: map[uuid.UUID]mirror.VariantMirror{}}
}

func (s *memVariants) FindByProductMirror(_ context.Context, pmID uuid.UUID) ([]mirror.VariantMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mirror.VariantMirror
	for _, vm := range s.rows {
		if vm.ProductMirrorID == pmID {
			out = append(out, vm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceOptionsKey < out[j].SourceOptionsKey })
	return out, nil
}

func (s *memVariants) FindBySourceVariant(_ context.Context, pmID uuid.UUID, sourceVariantID int64) (*mirror.VariantMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vm := range s.rows {
		if vm.ProductMirrorID == pmID && vm.SourceVariantID == sourceVariantID {
			cp := vm
			return &cp, nil
		}
	}
	return nil, mirror.ErrVariantMirrorNotFound
}

func (s *memVariants) FindByKey(_ context.Context, pmID uuid.UUID, key string) (*mirror.VariantMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vm := range s.rows {
		if vm.ProductMirrorID == pmID && vm.SourceOptionsKey == key {
			cp := vm
			return &cp, nil
		}
	}
	return nil, mirror.ErrVariantMirrorNotFound
}

func (s *memVariants) Save(_ context.Context, m *mirror.VariantMirror) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ID] = *m
	return nil
}

func (s *memVariants) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memVariants) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, vm := range s.rows {
		out = append(out, vm.SourceOptionsKey)
	}
	sort.Strings(out)
	return out
}

type memMedia struct {
	mu   sync.Mutex
	rows map[string]mirror.MediaProcess
}

func newMemMedia() *memMedia {
	return &memMedia{rows: map[string]mirror.MediaProcess{}}
}

func mediaKey(domain string, pid int64) string { return fmt.Sprintf("%s|%d", domain, pid) }

func (s *memMedia) FindByShopProduct(_ context.Context, domain string, pid int64) (*mirror.MediaProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[mediaKey(domain, pid)]
	if !ok {
		return nil, mirror.ErrMediaProcessNotFound
	}
	return &p, nil
}

func (s *memMedia) Save(_ context.Context, p *mirror.MediaProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[mediaKey(p.ShopDomain, p.ProductID)] = *p
	return nil
}

// ---------------------------------------------------------------------------
// Recording catalog
// ---------------------------------------------------------------------------

// fakeCatalog keeps a minimal product state and records every mutation.
type fakeCatalog struct {
	mu        sync.Mutex
	mutations []string
	failOn    map[string]error
	seq       int

	productGID   string
	options      []platform.TargetOption
	variants     []platform.TargetVariant
	standalone   string
	media        []platform.Media
	legacy       []string
	locations    []string
	handles      map[string]string
	publications []string
	seo          string
	product      json.RawMessage

	productInputs []platform.ProductInput
	bulkCreated   [][]platform.VariantInput
	bulkUpdated   [][]platform.VariantInput
	productSets   []platform.ProductSetInput
	deleted       []string
	trackedSet    map[string]bool
	quantities    map[string]int
	metafields    []platform.MetafieldInput
	mediaCreated  [][]platform.MediaInput
	mediaDeleted  [][]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		failOn:     map[string]error{},
		handles:    map[string]string{},
		locations:  []string{"gid://shopify/Location/1"},
		trackedSet: map[string]bool{},
		quantities: map[string]int{},
	}
}

func (f *fakeCatalog) mutate(op string) error {
	f.mutations = append(f.mutations, op)
	return f.failOn[op]
}

func (f *fakeCatalog) read(op string) error {
	return f.failOn[op]
}

func (f *fakeCatalog) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = nil
}

func (f *fakeCatalog) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mutations...)
}

func (f *fakeCatalog) count(op string) int {
	n := 0
	for _, c := range f.calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeCatalog) nextGID(kind string) string {
	f.seq++
	return fmt.Sprintf("gid://shopify/%s/%d", kind, 9000+f.seq)
}

func (f *fakeCatalog) newVariant(selected []catalog.SelectedOption) platform.TargetVariant {
	gid := f.nextGID("ProductVariant")
	return platform.TargetVariant{
		GID:              gid,
		SelectedOptions:  selected,
		InventoryItemGID: "gid://shopify/InventoryItem/" + gid[len("gid://shopify/ProductVariant/"):],
	}
}

func firstValues(options []platform.OptionInput) []catalog.SelectedOption {
	out := make([]catalog.SelectedOption, 0, len(options))
	for _, o := range options {
		v := ""
		if len(o.Values) > 0 {
			v = o.Values[0]
		}
		out = append(out, catalog.SelectedOption{Name: o.Name, Value: v})
	}
	return out
}

// seedDefault puts the product in the state the platform creates for a
// product without options.
func (f *fakeCatalog) seedDefault(productGID string) platform.TargetVariant {
	f.productGID = productGID
	f.options = []platform.TargetOption{{Name: "Title", Position: 1, Values: []string{catalog.DefaultVariantValue}}}
	v := f.newVariant([]catalog.SelectedOption{{Name: "Title", Value: catalog.DefaultVariantValue}})
	f.variants = []platform.TargetVariant{v}
	f.standalone = v.GID
	return v
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in platform.ProductInput) (*platform.CreatedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productInputs = append(f.productInputs, in)
	if err := f.mutate("CreateProduct"); err != nil {
		return nil, err
	}
	gid := f.nextGID("Product")
	if len(in.ProductOptions) == 0 {
		f.seedDefault(gid)
	} else {
		f.productGID = gid
		f.options = nil
		for _, o := range in.ProductOptions {
			f.options = append(f.options, platform.TargetOption{Name: o.Name, Position: o.Position, Values: o.Values})
		}
		v := f.newVariant(firstValues(in.ProductOptions))
		f.variants = []platform.TargetVariant{v}
		f.standalone = v.GID
	}
	return &platform.CreatedProduct{GID: gid, Variants: append([]platform.TargetVariant(nil), f.variants...)}, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, _ string, in platform.ProductInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productInputs = append(f.productInputs, in)
	return f.mutate("UpdateProduct")
}

func (f *fakeCatalog) FindProductByHandle(_ context.Context, handle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("FindProductByHandle"); err != nil {
		return "", err
	}
	gid, ok := f.handles[handle]
	if !ok {
		return "", platform.ErrNotFound
	}
	return gid, nil
}

func (f *fakeCatalog) FetchProduct(_ context.Context, _ int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("FetchProduct"); err != nil {
		return nil, err
	}
	if f.product == nil {
		return nil, platform.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeCatalog) SetProduct(_ context.Context, in platform.ProductSetInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productSets = append(f.productSets, in)
	return f.mutate("SetProduct")
}

func (f *fakeCatalog) FetchSEODescription(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seo, f.read("FetchSEODescription")
}

func (f *fakeCatalog) FetchOptions(_ context.Context, _ string) ([]platform.TargetOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("FetchOptions"); err != nil {
		return nil, err
	}
	return append([]platform.TargetOption(nil), f.options...), nil
}

func (f *fakeCatalog) CreateOptions(_ context.Context, _ string, options []platform.OptionInput, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("CreateOptions"); err != nil {
		return err
	}
	f.options = nil
	for _, o := range options {
		f.options = append(f.options, platform.TargetOption{Name: o.Name, Position: o.Position, Values: o.Values})
	}
	for i := range f.variants {
		f.variants[i].SelectedOptions = firstValues(options)
	}
	f.standalone = ""
	return nil
}

func (f *fakeCatalog) SetOptions(_ context.Context, _ string, options []platform.OptionInput, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("SetOptions"); err != nil {
		return err
	}
	f.options = nil
	for _, o := range options {
		f.options = append(f.options, platform.TargetOption{Name: o.Name, Position: o.Position, Values: o.Values})
	}
	return nil
}

func (f *fakeCatalog) FetchVariants(_ context.Context, _ string) ([]platform.TargetVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("FetchVariants"); err != nil {
		return nil, err
	}
	return append([]platform.TargetVariant(nil), f.variants...), nil
}

func (f *fakeCatalog) BulkCreateVariants(_ context.Context, _ string, variants []platform.VariantInput, strategy string) ([]platform.TargetVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCreated = append(f.bulkCreated, variants)
	if err := f.mutate("BulkCreateVariants"); err != nil {
		return nil, err
	}
	if strategy == platform.VariantStrategyRemoveStandalone && f.standalone != "" {
		f.removeVariant(f.standalone)
		f.standalone = ""
	}
	var created []platform.TargetVariant
	for _, in := range variants {
		selected := make([]catalog.SelectedOption, 0, len(in.OptionValues))
		for _, ov := range in.OptionValues {
			selected = append(selected, catalog.SelectedOption{Name: ov.OptionName, Value: ov.Name})
		}
		v := f.newVariant(selected)
		created = append(created, v)
		f.variants = append(f.variants, v)
	}
	return created, nil
}

func (f *fakeCatalog) BulkUpdateVariants(_ context.Context, _ string, variants []platform.VariantInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkUpdated = append(f.bulkUpdated, variants)
	if err := f.mutate("BulkUpdateVariants"); err != nil {
		return err
	}
	f.standalone = ""
	return nil
}

func (f *fakeCatalog) DeleteVariant(_ context.Context, gid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("DeleteVariant"); err != nil {
		return err
	}
	if err := f.failOn["DeleteVariant:"+gid]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, gid)
	f.removeVariant(gid)
	return nil
}

func (f *fakeCatalog) removeVariant(gid string) {
	kept := f.variants[:0]
	for _, v := range f.variants {
		if v.GID != gid {
			kept = append(kept, v)
		}
	}
	f.variants = kept
}

func (f *fakeCatalog) ListMedia(_ context.Context, _ string) ([]platform.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("ListMedia"); err != nil {
		return nil, err
	}
	return append([]platform.Media(nil), f.media...), nil
}

func (f *fakeCatalog) DeleteMedia(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaDeleted = append(f.mediaDeleted, ids)
	if err := f.mutate("DeleteMedia"); err != nil {
		return err
	}
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.media[:0]
	for _, m := range f.media {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	f.media = kept
	return nil
}

func (f *fakeCatalog) CreateMedia(_ context.Context, _ string, media []platform.MediaInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaCreated = append(f.mediaCreated, media)
	if err := f.mutate("CreateMedia"); err != nil {
		return err
	}
	for _, m := range media {
		f.media = append(f.media, platform.Media{
			ID:               f.nextGID("MediaImage"),
			MediaContentType: platform.MediaContentTypeImage,
			URL:              m.OriginalSource,
			Alt:              m.Alt,
		})
	}
	return nil
}

func (f *fakeCatalog) ListLegacyImages(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.legacy...), f.read("ListLegacyImages")
}

func (f *fakeCatalog) DeleteLegacyImage(_ context.Context, _ string, imageGID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("DeleteLegacyImage"); err != nil {
		return err
	}
	kept := f.legacy[:0]
	for _, id := range f.legacy {
		if id != imageGID {
			kept = append(kept, id)
		}
	}
	f.legacy = kept
	return nil
}

func (f *fakeCatalog) FetchInventoryItemAndLocations(_ context.Context, variantGID string) (*platform.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.read("FetchInventoryItemAndLocations"); err != nil {
		return nil, err
	}
	for _, v := range f.variants {
		if v.GID == variantGID {
			return &platform.InventoryItem{
				GID:          v.InventoryItemGID,
				Tracked:      f.trackedSet[v.InventoryItemGID],
				LocationGIDs: append([]string(nil), f.locations...),
			}, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (f *fakeCatalog) SetInventoryQuantities(_ context.Context, itemGID string, _ []string, quantity int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("SetInventoryQuantities"); err != nil {
		return err
	}
	f.quantities[itemGID] = quantity
	return nil
}

func (f *fakeCatalog) SetInventoryTracked(_ context.Context, itemGID string, tracked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutate("SetInventoryTracked"); err != nil {
		return err
	}
	f.trackedSet[itemGID] = tracked
	return nil
}

func (f *fakeCatalog) ListPublications(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publications, f.read("ListPublications")
}

func (f *fakeCatalog) Publish(_ context.Context, _ string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("Publish")
}

func (f *fakeCatalog) AddToCollection(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutate("AddToCollection")
}

func (f *fakeCatalog) SetMetafields(_ context.Context, metafields []platform.MetafieldInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metafields = append(f.metafields, metafields...)
	return f.mutate("SetMetafields")
}

type fakeProvider struct {
	apis map[string]*fakeCatalog
}

func (p *fakeProvider) For(shop *mirror.Shop) (platform.CatalogAPI, error) {
	api, ok := p.apis[shop.Domain]
	if !ok {
		return nil, fmt.Errorf("no client for %s", shop.Domain)
	}
	return api, nil
}

// ---------------------------------------------------------------------------
// Queue mock
// ---------------------------------------------------------------------------

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, jobs ...*job.Job) error {
	args := m.Called(ctx, jobs)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	source   *mirror.Shop
	target   *mirror.Shop
	shops    *memShops
	products *memProducts
	variants *memVariants
	media    *memMedia
	src      *fakeCatalog
	dst      *fakeCatalog
	apis     *fakeProvider
	orch     *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	source, err := mirror.NewShop("source.myshopify.com", "src-token")
	require.NoError(t, err)
	source.IsSource = true
	target, err := mirror.NewShop("target.myshopify.com", "dst-token")
	require.NoError(t, err)

	f := &fixture{
		source:   source,
		target:   target,
		shops:    newMemShops(source, target),
		products: newMemProducts(),
		variants: newMemVariants(),
		media:    newMemMedia(),
		src:      newFakeCatalog(),
		dst:      newFakeCatalog(),
	}
	f.shops.connect(source, target)
	f.apis = &fakeProvider{apis: map[string]*fakeCatalog{source.Domain: f.src, target.Domain: f.dst}}
	f.orch = NewOrchestrator(f.shops, f.products, f.variants, f.media, f.apis, cfg, zap.NewNop())
	return f
}

func (f *fixture) task(payload map[string]any) Task {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	id, _ := payload["id"].(int64)
	return Task{SourceShopID: f.source.ID, TargetShopID: f.target.ID, ProductID: id, Payload: raw}
}

// seedMirror records an existing mirror whose target product is in the
// default state.
func (f *fixture) seedMirror(t *testing.T, productID int64, snap *catalog.Snapshot) *mirror.ProductMirror {
	t.Helper()
	gid := "gid://shopify/Product/500"
	f.dst.seedDefault(gid)
	pm, err := mirror.NewProductMirror(f.source.ID, productID, f.target.ID, gid)
	require.NoError(t, err)
	if snap != nil {
		pm.LastSnapshot = snap
	}
	require.NoError(t, f.products.Save(context.Background(), pm))
	return pm
}

// ---------------------------------------------------------------------------
// Payload builders
// ---------------------------------------------------------------------------

func variantPayload(id int64, price string, opts ...string) map[string]any {
	v := map[string]any{
		"id":                   id,
		"price":                price,
		"taxable":              true,
		"inventory_policy":     "deny",
		"inventory_management": "shopify",
		"inventory_quantity":   5,
		"sku":                  fmt.Sprintf("SKU-%d", id),
	}
	for i, o := range opts {
		v[fmt.Sprintf("option%d", i+1)] = o
	}
	return v
}

func sizedProduct(id int64, variants ...map[string]any) map[string]any {
	values := []string{}
	for _, v := range variants {
		values = append(values, v["option1"].(string))
	}
	return map[string]any{
		"id":           id,
		"title":        "Lamp",
		"body_html":    "<p>bright</p>",
		"vendor":       "Acme",
		"product_type": "Lighting",
		"handle":       "lamp",
		"status":       "active",
		"tags":         "b, a, a",
		"options":      []map[string]any{{"name": "Size", "position": 1, "values": values}},
		"variants":     variants,
		"images": []map[string]any{
			{"src": "https://cdn.example.com/a.jpg?v=1", "alt": "front", "position": 1},
			{"src": "https://cdn.example.com/b.jpg?v=1", "alt": "back", "position": 2},
		},
	}
}

func defaultProduct(id int64, price string) map[string]any {
	p := sizedProduct(id, variantPayload(id*10, price, catalog.DefaultVariantValue))
	p["options"] = []map[string]any{{"name": "Title", "position": 1, "values": []string{catalog.DefaultVariantValue}}}
	return p
}
