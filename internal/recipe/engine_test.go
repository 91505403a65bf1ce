package recipe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genelab/internal/blob"
	"genelab/internal/infra/persistence/memory"
	"genelab/pkg/domain"
)

func writeMatrix(t *testing.T, csv string) domain.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return domain.Dataset{
		ID:          "ds-1",
		OwnerID:     "owner-1",
		StoragePath: path,
		NRows:       6,
		UpdatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

const deMatrix = "gene,group,f1,f2\n" +
	"g1,a,1.0,5.0\n" +
	"g2,a,1.1,5.2\n" +
	"g3,a,0.9,5.1\n" +
	"g4,b,9.0,5.0\n" +
	"g5,b,9.2,5.3\n" +
	"g6,b,8.8,4.9\n"

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *blob.MemStore) {
	t.Helper()
	store := memory.NewStore()
	blobs := blob.NewMemStore()
	return NewEngine(store, blobs, nil, nil, "http://localhost:8000"), store, blobs
}

func readBlob(t *testing.T, blobs *blob.MemStore, key string) ([]byte, blob.Info) {
	t.Helper()
	info, rc, err := blobs.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return data, info
}

func TestSubmitUnknownRecipe(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ds := writeMatrix(t, deMatrix)

	_, err := eng.Submit(context.Background(), ds, ds.OwnerID, "volcano", nil)
	if !errors.Is(err, domain.ErrUnknownRecipe) {
		t.Fatalf("err = %v, want ErrUnknownRecipe", err)
	}
	runs, err := store.ListRuns(context.Background(), ds.ID)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("run record created for a rejected key: %+v", runs)
	}
}

func TestSubmitDELifecycle(t *testing.T) {
	eng, store, blobs := newTestEngine(t)
	ds := writeMatrix(t, deMatrix)

	run, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", map[string]any{"group_col": "group"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q (%s)", run.Status, run.ErrorMessage)
	}
	if run.CacheHit {
		t.Fatal("first run must not be a cache hit")
	}
	if run.StartedAt == nil || run.FinishedAt == nil {
		t.Fatal("timestamps not set on terminal run")
	}
	url, ok := run.Artifacts["csv_url"]
	if !ok {
		t.Fatalf("artifacts = %v", run.Artifacts)
	}
	if !strings.HasPrefix(url, "http://localhost:8000/files/runs/"+run.ID+"/") {
		t.Fatalf("artifact url = %q", url)
	}

	data, _ := readBlob(t, blobs, "runs/"+run.ID+"/de.csv")
	body := string(data)
	if !strings.HasPrefix(body, "feature,tstat,pval,fdr\n") {
		t.Fatalf("de.csv header: %q", body[:min(len(body), 60)])
	}
	// f1 separates the groups cleanly and must rank first.
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 {
		t.Fatalf("de.csv rows = %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "f1,") {
		t.Fatalf("top feature line = %q", lines[1])
	}

	stored, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != domain.RunStatusSucceeded {
		t.Fatalf("persisted status = %q", stored.Status)
	}
}

func TestSubmitFailureRecordedNotReturned(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	// Three groups makes differential expression invalid.
	ds := writeMatrix(t, "gene,group,f1\ng1,a,1\ng2,b,2\ng3,c,3\n")

	run, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", nil)
	if err != nil {
		t.Fatalf("submit must not surface execution errors: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("status = %q", run.Status)
	}
	if !strings.Contains(run.ErrorMessage, "exactly 2 groups") {
		t.Fatalf("error message = %q", run.ErrorMessage)
	}
	if run.FinishedAt == nil {
		t.Fatal("failed run missing finished_at")
	}

	stored, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if stored.Status != domain.RunStatusFailed || stored.ErrorMessage == "" {
		t.Fatalf("persisted run = %+v", stored)
	}
}

func TestSubmitCacheHitReusesArtifacts(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ds := writeMatrix(t, deMatrix)
	params := map[string]any{"group_col": "group"}

	first, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", params)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", params)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("cache hit must still create a new run record")
	}
	if !second.CacheHit {
		t.Fatal("second identical submission must be a cache hit")
	}
	if second.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q", second.Status)
	}
	if second.Artifacts["csv_url"] != first.Artifacts["csv_url"] {
		t.Fatalf("artifacts not reused: %v vs %v", second.Artifacts, first.Artifacts)
	}

	// Different params miss the cache.
	third, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", map[string]any{"group_col": "group", "extra": true})
	if err != nil {
		t.Fatalf("third submit: %v", err)
	}
	if third.CacheHit {
		t.Fatal("changed params must not hit the cache")
	}
}

func TestSubmitCacheMissAfterDatasetUpdate(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ds := writeMatrix(t, deMatrix)

	first, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", nil)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Status != domain.RunStatusSucceeded {
		t.Fatalf("first status = %q (%s)", first.Status, first.ErrorMessage)
	}

	ds.UpdatedAt = ds.UpdatedAt.Add(time.Minute)
	second, err := eng.Submit(context.Background(), ds, ds.OwnerID, "de", nil)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.CacheHit {
		t.Fatal("a rewritten dataset must invalidate the run cache")
	}
}

func TestSubmitCorrelation(t *testing.T) {
	eng, _, blobs := newTestEngine(t)
	ds := writeMatrix(t, "gene,a,b,c\ng1,1,2,1\ng2,2,4,5\ng3,3,6,2\ng4,4,8,8\n")

	run, err := eng.Submit(context.Background(), ds, ds.OwnerID, "correlation", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q (%s)", run.Status, run.ErrorMessage)
	}
	if _, ok := run.Artifacts["csv_url"]; !ok {
		t.Fatalf("artifacts = %v", run.Artifacts)
	}
	if _, ok := run.Artifacts["heatmap_png"]; !ok {
		t.Fatalf("artifacts = %v", run.Artifacts)
	}

	data, info := readBlob(t, blobs, "runs/"+run.ID+"/correlation.png")
	if info.ContentType != "image/png" {
		t.Fatalf("content type = %q", info.ContentType)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatal("heatmap is not a png")
	}
}

func TestSubmitPCA(t *testing.T) {
	eng, _, blobs := newTestEngine(t)
	ds := writeMatrix(t, "sample,a,b,c\ns1,1,9,2\ns2,2,8,4\ns3,3,7,1\ns4,4,6,8\ns5,5,5,3\n")

	run, err := eng.Submit(context.Background(), ds, ds.OwnerID, "pca", map[string]any{"n_components": 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != domain.RunStatusSucceeded {
		t.Fatalf("status = %q (%s)", run.Status, run.ErrorMessage)
	}
	for _, name := range []string{"scores_csv", "loadings_csv", "explained_csv", "scree_png", "scatter_png"} {
		if _, ok := run.Artifacts[name]; !ok {
			t.Fatalf("artifact %q missing: %v", name, run.Artifacts)
		}
	}

	data, _ := readBlob(t, blobs, "runs/"+run.ID+"/pca_scores.csv")
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("scores rows = %d, want header plus one per sample", len(lines))
	}
	if !strings.Contains(lines[0], "PC1") || !strings.Contains(lines[0], "PC2") {
		t.Fatalf("scores header = %q", lines[0])
	}
}

func TestSubmitMissingMatrixFails(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ds := domain.Dataset{ID: "ds-gone", StoragePath: "/nonexistent/matrix.csv"}

	run, err := eng.Submit(context.Background(), ds, "owner-1", "correlation", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("status = %q", run.Status)
	}
	if !strings.Contains(run.ErrorMessage, "load dataset") {
		t.Fatalf("error message = %q", run.ErrorMessage)
	}
}

func TestCancel(t *testing.T) {
	eng, store, _ := newTestEngine(t)

	queued := domain.AnalysisRun{
		ID:        "run-queued",
		DatasetID: "ds-1",
		RecipeKey: "de",
		Status:    domain.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.PutRun(context.Background(), queued); err != nil {
		t.Fatalf("put run: %v", err)
	}

	canceled, err := eng.Cancel(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != domain.RunStatusCanceled {
		t.Fatalf("status = %q", canceled.Status)
	}
	if canceled.FinishedAt == nil {
		t.Fatal("canceled run missing finished_at")
	}

	if _, err := eng.Cancel(context.Background(), queued.ID); err == nil {
		t.Fatal("canceling a terminal run must error")
	}
	if _, err := eng.Cancel(context.Background(), "run-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTemplates(t *testing.T) {
	ts := Templates()
	if len(ts) != 3 {
		t.Fatalf("templates = %d", len(ts))
	}
	keys := map[string]string{}
	for _, tpl := range ts {
		keys[tpl.Key] = tpl.DisplayName
	}
	if keys["correlation"] != "Correlation Matrix" || keys["pca"] != "PCA" || keys["de"] != "Differential Expression" {
		t.Fatalf("templates = %v", keys)
	}
}
