package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerp-labs/codeintel/internal/state"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// fakeEmbeddingServer mimics the local provider's wire contract (spec
// §4.3) so full-index and search pipelines exercise a real Adapter
// without reaching an actual inference backend.
func fakeEmbeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			embeddings := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				embeddings[i] = fakeVector(text)
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings}))
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fakeVector derives a deterministic 4-dimensional vector from text so
// distinct content yields distinct (but stable) vectors.
func fakeVector(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, sum / 2, sum / 3, sum / 4}
}

func newTestService(t *testing.T) (*Service, *state.State) {
	t.Helper()
	dir := t.TempDir()
	srv := fakeEmbeddingServer(t)

	md := fmt.Sprintf(`{"repositories":{},"workspaces":{},"embedding":{"provider":"local","base_url":%q,"model":"test-model","dimensions":4}}`, srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(md), 0o644))

	st := state.New(dir)
	require.NoError(t, st.Initialize(context.Background()))
	t.Cleanup(func() { _ = st.Shutdown(context.Background()) })
	return New(st, nil), st
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc Foo() {}\n\nfunc Bar() { Foo() }\n"), 0o644))
	_, err = wt.Add("a.go")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return dir
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestAddRepository_RejectsNonGitPath(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AddRepository(context.Background(), raw(t, addRepositoryParams{Path: t.TempDir()}))
	assert.Error(t, err)
}

func TestAddRepository_SpawnsPipelineAndPopulatesCounters(t *testing.T) {
	svc, st := newTestService(t)
	dir := initGitRepo(t)

	result, err := svc.AddRepository(context.Background(), raw(t, addRepositoryParams{Path: dir}))
	require.NoError(t, err)
	data := result.(map[string]string)
	repoID := data["repo_id"]
	assert.Equal(t, "indexing", data["status"])

	assert.Eventually(t, func() bool {
		return !st.IsRunning(repoID, state.TaskIndexing) && !st.IsRunning(repoID, state.TaskGraphBuilding)
	}, 5*time.Second, 10*time.Millisecond)

	var chunkCount, edgeCount int
	st.WithReadLock(func(md *state.Metadata) {
		repo := md.Repositories[repoID]
		if repo != nil {
			chunkCount = repo.ChunkCount
			edgeCount = repo.EdgeCount
		}
	})
	assert.Greater(t, chunkCount, 0)
	assert.Greater(t, edgeCount, 0)
}

func TestAddRepository_SecondCallWhileIndexingReportsAlreadyIndexing(t *testing.T) {
	svc, st := newTestService(t)
	dir := initGitRepo(t)

	canonical, err := state.CanonicalizePath(dir)
	require.NoError(t, err)
	repoID := state.RepositoryID(canonical)

	// Simulate an already in-flight indexing task for this repository,
	// deterministically rather than racing a real pipeline goroutine.
	_, started := st.StartTask(repoID, state.TaskIndexing)
	require.True(t, started)
	defer st.FinishTask(repoID, state.TaskIndexing)

	result, err := svc.AddRepository(context.Background(), raw(t, addRepositoryParams{Path: dir}))
	require.NoError(t, err)
	assert.Equal(t, "already_indexing", result.(map[string]string)["status"])
}

func seedRepo(t *testing.T, svc *Service, st *state.State) (string, string) {
	t.Helper()
	dir := initGitRepo(t)
	result, err := svc.AddRepository(context.Background(), raw(t, addRepositoryParams{Path: dir}))
	require.NoError(t, err)
	repoID := result.(map[string]string)["repo_id"]

	require.Eventually(t, func() bool {
		return !st.IsRunning(repoID, state.TaskIndexing) && !st.IsRunning(repoID, state.TaskGraphBuilding)
	}, 5*time.Second, 10*time.Millisecond)
	return repoID, dir
}

func TestSearch_ReturnsVectorScoredResults(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	result, err := svc.Search(context.Background(), raw(t, searchParams{Query: "Foo", RepoID: &repoID, Limit: 5}))
	require.NoError(t, err)
	results := result.(map[string]any)["results"].([]searchResult)
	assert.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, -1.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestMap_GroupsSymbolsByFile(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	result, err := svc.Map(context.Background(), raw(t, mapParams{RepoID: repoID}))
	require.NoError(t, err)
	files := result.(map[string]any)["files"].(map[string][]mapSymbol)
	assert.Contains(t, files, "a.go")
}

func TestFindReferences_MatchesRawOrQualifiedTarget(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	result, err := svc.FindReferences(context.Background(), raw(t, findReferencesParams{Symbol: "Foo", RepoID: &repoID}))
	require.NoError(t, err)
	refs := result.(map[string]any)["references"].([]edgeResult)
	require.NotEmpty(t, refs)
	assert.Equal(t, "Foo", refs[0].TargetName)
}

func TestCallGraph_CalleesFindsDirectCall(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	result, err := svc.CallGraph(context.Background(), raw(t, callGraphParams{Symbol: "Bar", RepoID: repoID, Direction: "callees"}))
	require.NoError(t, err)
	edges := result.(map[string]any)["edges"].([]callGraphEdge)
	require.NotEmpty(t, edges)
	assert.Equal(t, "Bar", edges[0].From)
	assert.Equal(t, "Foo", edges[0].To)
}

func TestCallGraph_RejectsInvalidDirection(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CallGraph(context.Background(), raw(t, callGraphParams{Symbol: "Bar", RepoID: "r1", Direction: "sideways"}))
	assert.Error(t, err)
}

func TestCreateAndListWorkspaces(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateWorkspace(context.Background(), raw(t, createWorkspaceParams{Name: "ws1", RepoIDs: []string{"r1", "r2"}}))
	require.NoError(t, err)

	result, err := svc.ListWorkspaces(context.Background(), raw(t, struct{}{}))
	require.NoError(t, err)
	workspaces := result.(map[string]any)["workspaces"].([]state.Workspace)
	require.Len(t, workspaces, 1)
	assert.Equal(t, "ws1", workspaces[0].Name)
}

func TestRemoveRepository_DeletesChunksAndEdges(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	_, err := svc.RemoveRepository(context.Background(), raw(t, repoIDParams{RepoID: repoID}))
	require.NoError(t, err)

	count, err := st.Store().CountChunks(context.Background(), storage.NewFilter().Eq("repo_id", repoID))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	st.WithReadLock(func(md *state.Metadata) {
		_, exists := md.Repositories[repoID]
		assert.False(t, exists)
	})
}

func TestStatus_ReflectsLiveTaskRegistry(t *testing.T) {
	svc, st := newTestService(t)
	repoID, _ := seedRepo(t, svc, st)

	result, err := svc.Status(context.Background(), raw(t, struct{}{}))
	require.NoError(t, err)
	repos := result.(map[string]any)["repositories"].([]state.Repository)
	require.Len(t, repos, 1)
	assert.Equal(t, repoID, repos[0].ID)
	assert.False(t, repos[0].Indexing)
}
