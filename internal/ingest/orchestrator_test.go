// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harborstay/harborstay/internal/catalog"
	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/imagecache"
	"github.com/harborstay/harborstay/internal/models"
	"github.com/harborstay/harborstay/internal/ratelimit"
	"github.com/harborstay/harborstay/internal/upstream"
)

// fakeClient is an in-memory upstream.Client for orchestrator and image
// path tests.
type fakeClient struct {
	mu         sync.Mutex
	listings   map[string][]models.UpstreamListing
	photos     map[string][]models.ListingPhoto
	imageErr   map[string]error
	imageCalls map[string]int
}

var _ upstream.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		listings:   make(map[string][]models.UpstreamListing),
		photos:     make(map[string][]models.ListingPhoto),
		imageErr:   make(map[string]error),
		imageCalls: make(map[string]int),
	}
}

func (f *fakeClient) ListCustomerListings(_ context.Context, customerID string) ([]models.UpstreamListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listings[customerID], nil
}

func (f *fakeClient) FetchListingDetails(_ context.Context, customerID, listingID string) (*models.UpstreamListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listings[customerID] {
		if l.ID == listingID {
			listing := l
			return &listing, nil
		}
	}
	return nil, upstream.ErrNotFound
}

func (f *fakeClient) FetchListingImages(_ context.Context, customerID, listingID string) ([]models.ListingPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := customerID + "/" + listingID
	f.imageCalls[key]++
	if err := f.imageErr[key]; err != nil {
		return nil, err
	}
	photos, ok := f.photos[key]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return photos, nil
}

func (f *fakeClient) calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageCalls[key]
}

// testPipeline bundles the wired components for orchestrator tests.
type testPipeline struct {
	client *fakeClient
	store  *catalog.Store
	cache  *imagecache.Cache
	orch   *Orchestrator
	images *ImageService
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	client := newFakeClient()
	store := newTestCatalog(t)

	guard := ratelimit.NewGuard(&config.RateLimitConfig{
		MinSpacing:   5 * time.Second,
		Window:       60 * time.Second,
		MaxPerWindow: 5,
		MaxKeys:      1000,
	})
	t.Cleanup(guard.Stop)

	cache := imagecache.New(&config.ImageCacheConfig{
		TTL:             24 * time.Hour,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(cache.Stop)

	images := NewImageService(client, guard, cache, store)
	engine := NewUpsertEngine(store)
	orch := NewOrchestrator(client, engine, images, NoopTracker{}, &config.IngestConfig{
		ImageBatchSize: 2,
		BatchDelay:     0,
		ItemDelay:      0,
	})

	return &testPipeline{client: client, store: store, cache: cache, orch: orch, images: images}
}

// recordingTracker captures every recorded transition per platform id.
type recordingTracker struct {
	mu     sync.Mutex
	states map[string][]ItemState
}

var _ Tracker = (*recordingTracker)(nil)

func newRecordingTracker() *recordingTracker {
	return &recordingTracker{states: make(map[string][]ItemState)}
}

func (r *recordingTracker) Record(platformID string, state ItemState, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[platformID] = append(r.states[platformID], state)
}

func (r *recordingTracker) Last(platformID string) (ItemState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	recorded := r.states[platformID]
	if len(recorded) == 0 {
		return "", false
	}
	return recorded[len(recorded)-1], true
}

func (r *recordingTracker) Close() error { return nil }

func (r *recordingTracker) sequence(platformID string) []ItemState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[platformID]
}

func equalStates(got, want []ItemState) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestOrchestratorRecordsEveryDeclaredState(t *testing.T) {
	tp := newTestPipeline(t)
	tracker := newRecordingTracker()
	tp.orch.progress = tracker

	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
		*sampleListing("L2", "Dune House"),
	}
	tp.client.photos["cus_1/L1"] = []models.ListingPhoto{
		{URL: "https://example.com/l1-a.jpg"},
	}
	// L2 has no images upstream.
	ctx := context.Background()

	if _, _, err := tp.orch.ImportAll(ctx, "cus_1"); err != nil {
		t.Fatalf("ImportAll() error = %v", err)
	}
	if got := tracker.sequence("cus_1/L1"); !equalStates(got, []ItemState{StateFetched, StateCreated}) {
		t.Errorf("import sequence = %v, want [fetched created]", got)
	}

	if _, _, err := tp.orch.PublishSelected(ctx, "cus_1", []string{"L1", "L2"}); err != nil {
		t.Fatalf("PublishSelected() error = %v", err)
	}
	wantL1 := []ItemState{
		StateFetched, StateCreated,
		StateFetched, StateUpdated, StateImagesPending, StateImagesStored,
	}
	if got := tracker.sequence("cus_1/L1"); !equalStates(got, wantL1) {
		t.Errorf("L1 sequence = %v, want %v", got, wantL1)
	}
	wantL2 := []ItemState{
		StateFetched, StateCreated,
		StateFetched, StateUpdated, StateImagesPending, StateImagesSkipped,
	}
	if got := tracker.sequence("cus_1/L2"); !equalStates(got, wantL2) {
		t.Errorf("L2 sequence = %v, want %v", got, wantL2)
	}

	if last, ok := tracker.Last("cus_1/L1"); !ok || last != StateImagesStored {
		t.Errorf("Last(L1) = %v/%v, want images_stored", last, ok)
	}
}

func TestImportAllColdImport(t *testing.T) {
	tp := newTestPipeline(t)
	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
		*sampleListing("L2", "Dune House"),
	}

	properties, stats, err := tp.orch.ImportAll(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("ImportAll() error = %v", err)
	}
	if len(properties) != 2 {
		t.Fatalf("len(properties) = %d, want 2", len(properties))
	}
	if properties[0].PlatformID != "cus_1/L1" || properties[1].PlatformID != "cus_1/L2" {
		t.Errorf("platform ids = %q, %q, want cus_1/L1, cus_1/L2",
			properties[0].PlatformID, properties[1].PlatformID)
	}
	for _, p := range properties {
		if p.IsPublished {
			t.Errorf("property %s published by plain import", p.PlatformID)
		}
	}
	if stats.Succeeded != 2 || stats.Failed != 0 {
		t.Errorf("stats = %d succeeded / %d failed, want 2/0", stats.Succeeded, stats.Failed)
	}
}

func TestImportAllEmptyListingSet(t *testing.T) {
	tp := newTestPipeline(t)

	_, _, err := tp.orch.ImportAll(context.Background(), "cus_empty")
	if !errors.Is(err, ErrNoListings) {
		t.Errorf("ImportAll() error = %v, want ErrNoListings", err)
	}
}

func TestImportAllTwiceCreatesNoDuplicates(t *testing.T) {
	tp := newTestPipeline(t)
	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
		*sampleListing("L2", "Dune House"),
	}
	ctx := context.Background()

	first, _, err := tp.orch.ImportAll(ctx, "cus_1")
	if err != nil {
		t.Fatalf("first ImportAll() error = %v", err)
	}
	second, _, err := tp.orch.ImportAll(ctx, "cus_1")
	if err != nil {
		t.Fatalf("second ImportAll() error = %v", err)
	}

	if len(first) != len(second) {
		t.Errorf("result counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("property %d changed id across runs: %d -> %d", i, first[i].ID, second[i].ID)
		}
		if first[i].Name != second[i].Name || first[i].Price != second[i].Price {
			t.Errorf("property %d field values changed across identical runs", i)
		}
	}

	all, err := tp.store.List(ctx, catalog.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("catalog rows = %d, want 2 (no duplicates)", len(all))
	}
}

func TestPublishSelectedFiltersPublishesAndIngestsImages(t *testing.T) {
	tp := newTestPipeline(t)
	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
		*sampleListing("L2", "Dune House"),
		*sampleListing("L3", "Harbor Loft"),
	}
	tp.client.photos["cus_1/L1"] = []models.ListingPhoto{
		{URL: "https://example.com/l1-a.jpg"},
		{URL: "https://example.com/l1-b.jpg"},
	}
	tp.client.photos["cus_1/L3"] = []models.ListingPhoto{
		{URL: "https://example.com/l3-a.jpg"},
	}
	ctx := context.Background()

	properties, stats, err := tp.orch.PublishSelected(ctx, "cus_1", []string{"L1", "L3"})
	if err != nil {
		t.Fatalf("PublishSelected() error = %v", err)
	}
	if len(properties) != 2 {
		t.Fatalf("len(properties) = %d, want 2 (L2 filtered out)", len(properties))
	}
	for _, p := range properties {
		if !p.IsPublished || p.PublishedAt == nil {
			t.Errorf("property %s not published", p.PlatformID)
		}
	}
	if stats.ImagesStored != 2 {
		t.Errorf("ImagesStored = %d, want 2", stats.ImagesStored)
	}

	stored, err := tp.store.FindByPlatformID(ctx, "cus_1/L1")
	if err != nil {
		t.Fatalf("FindByPlatformID() error = %v", err)
	}
	if stored.ImageURL != "https://example.com/l1-a.jpg" {
		t.Errorf("ImageURL = %q, want first photo", stored.ImageURL)
	}
	if len(stored.AdditionalImages) != 1 || stored.AdditionalImages[0] != "https://example.com/l1-b.jpg" {
		t.Errorf("AdditionalImages = %v, want remainder in order", stored.AdditionalImages)
	}
	if stored.ImagesStoredAt == nil {
		t.Error("ImagesStoredAt not stamped by ingestion")
	}
}

func TestPublishSelectedNoneMatch(t *testing.T) {
	tp := newTestPipeline(t)
	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
	}

	_, _, err := tp.orch.PublishSelected(context.Background(), "cus_1", []string{"L99"})
	if !errors.Is(err, ErrNoListings) {
		t.Errorf("PublishSelected() error = %v, want ErrNoListings", err)
	}
}

func TestPublishSelectedIsolatesImageFailures(t *testing.T) {
	tp := newTestPipeline(t)
	tp.client.listings["cus_1"] = []models.UpstreamListing{
		*sampleListing("L1", "Ocean View"),
		*sampleListing("L2", "Dune House"),
	}
	tp.client.photos["cus_1/L2"] = []models.ListingPhoto{
		{URL: "https://example.com/l2-a.jpg"},
	}
	// L1's images are gone upstream.
	tp.client.imageErr["cus_1/L1"] = upstream.ErrNotFound
	ctx := context.Background()

	properties, stats, err := tp.orch.PublishSelected(ctx, "cus_1", []string{"L1", "L2"})
	if err != nil {
		t.Fatalf("PublishSelected() error = %v", err)
	}

	// Both remain published despite L1's ingestion failure.
	for _, p := range properties {
		if !p.IsPublished {
			t.Errorf("property %s unpublished after image failure", p.PlatformID)
		}
	}
	if stats.ImagesStored != 1 || stats.ImagesSkipped != 1 {
		t.Errorf("images stored/skipped = %d/%d, want 1/1", stats.ImagesStored, stats.ImagesSkipped)
	}

	l2, err := tp.store.FindByPlatformID(ctx, "cus_1/L2")
	if err != nil {
		t.Fatalf("FindByPlatformID() error = %v", err)
	}
	if l2.ImageURL != "https://example.com/l2-a.jpg" {
		t.Errorf("sibling property images not stored: %q", l2.ImageURL)
	}
}
