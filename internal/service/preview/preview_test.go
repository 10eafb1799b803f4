package preview

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingyan2022/ofd-previewer/internal/cache"
	"github.com/qingyan2022/ofd-previewer/internal/engine"
	"github.com/qingyan2022/ofd-previewer/internal/engine/basic"
	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/converters"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
	"github.com/qingyan2022/ofd-previewer/pkg/queue"
	"github.com/qingyan2022/ofd-previewer/pkg/storage"
)

// fakeQueue 内存队列桩
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []*queue.Task
	statuses map[string]*queue.TaskStatus
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{statuses: make(map[string]*queue.TaskStatus)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, task)
	return nil
}

func (q *fakeQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[taskID]
	if !ok {
		return nil, os.ErrNotExist
	}
	return status, nil
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error { return nil }

func (q *fakeQueue) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[status.TaskID] = status
	return nil
}

func (q *fakeQueue) status(taskID string) *queue.TaskStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statuses[taskID]
}

func fixtureOFD(t *testing.T) []byte {
	t.Helper()
	entries := map[string]string{
		"OFD.xml": `<ofd:OFD xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:DocBody>
    <ofd:DocInfo><ofd:Title>测试发票</ofd:Title></ofd:DocInfo>
    <ofd:DocRoot>Doc_0/Document.xml</ofd:DocRoot>
  </ofd:DocBody>
</ofd:OFD>`,
		"Doc_0/Document.xml": `<ofd:Document xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:CommonData>
    <ofd:PageArea><ofd:PhysicalBox>0 0 210 140</ofd:PhysicalBox></ofd:PageArea>
  </ofd:CommonData>
  <ofd:Pages>
    <ofd:Page ID="1" BaseLoc="Pages/Page_0/Content.xml"/>
    <ofd:Page ID="2" BaseLoc="Pages/Page_1/Content.xml"/>
  </ofd:Pages>
</ofd:Document>`,
		"Doc_0/Pages/Page_0/Content.xml": `<ofd:Page xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:Content><ofd:Layer>
    <ofd:TextObject ID="7" Size="10.5">
      <ofd:TextCode X="25" Y="40">价税合计</ofd:TextCode>
    </ofd:TextObject>
  </ofd:Layer></ofd:Content>
</ofd:Page>`,
		"Doc_0/Pages/Page_1/Content.xml": `<ofd:Page xmlns:ofd="http://www.ofdspec.org/2016">
  <ofd:Content><ofd:Layer/></ofd:Content>
</ofd:Page>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestService(t *testing.T) (*PreviewService, *fakeQueue) {
	t.Helper()
	log := logger.NewTestLogger()

	store, err := storage.NewLocalStorage(t.TempDir(), log)
	require.NoError(t, err)

	orch := engine.NewOrchestrator(log, nil, basic.New(log))
	rc := cache.New(cache.Config{}, orch, log)
	q := newFakeQueue()

	return NewService(rc, store, q, converters.NewPageConverter(0), log), q
}

func uploadFixture(t *testing.T, svc *PreviewService) string {
	t.Helper()
	fileID, err := svc.Upload(context.Background(), bytes.NewReader(fixtureOFD(t)), "invoice.ofd")
	require.NoError(t, err)
	return fileID
}

func TestGetMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)

	meta, err := svc.GetMetadata(context.Background(), fileID)
	require.NoError(t, err)

	assert.Equal(t, 2, meta.Pages)
	assert.Equal(t, 210.0, meta.WidthMM)
	assert.Equal(t, 140.0, meta.HeightMM)
	assert.Equal(t, "测试发票", meta.Title)
	assert.True(t, meta.TextExtractable)
}

func TestGetMetadataMissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetMetadata(context.Background(), "no-such-file.ofd")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetCapabilities(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)

	caps, err := svc.GetCapabilities(context.Background(), fileID)
	require.NoError(t, err)

	assert.True(t, caps.Text)
	assert.False(t, caps.Vector)
}

func TestGetPageSVG(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)

	contentType, data, err := svc.GetPage(context.Background(), fileID, 1, "svg")
	require.NoError(t, err)

	assert.Equal(t, "image/svg+xml", contentType)
	assert.Contains(t, string(data), "价税合计")
	assert.Contains(t, string(data), `viewBox="0 0 210 140"`)
}

func TestGetPageInvalidPage(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)
	ctx := context.Background()

	for _, page := range []int{0, -1, 3} {
		_, _, err := svc.GetPage(ctx, fileID, page, "svg")
		assert.ErrorIs(t, err, models.ErrInvalidPage, "page=%d", page)
	}
}

func TestGetPageUnsupportedFormat(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)

	_, _, err := svc.GetPage(context.Background(), fileID, 1, "bmp")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestGetText(t *testing.T) {
	svc, _ := newTestService(t)
	fileID := uploadFixture(t, svc)
	ctx := context.Background()

	items, err := svc.GetText(ctx, fileID, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "价税合计", items[0].Text)
	assert.Equal(t, 25.0, items[0].X)
	assert.Equal(t, 10.5, items[0].FontSize)

	// 无文本页返回空集而不是错误
	items, err = svc.GetText(ctx, fileID, 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUploadDefersValidationToParse(t *testing.T) {
	svc, _ := newTestService(t)

	fileID, err := svc.Upload(context.Background(), bytes.NewReader([]byte("not an ofd")), "raw.ofd")
	require.NoError(t, err)
	assert.Contains(t, fileID, ".ofd")

	// 坏文件在解析时才报错
	_, err = svc.GetMetadata(context.Background(), fileID)
	assert.ErrorIs(t, err, models.ErrMalformedArchive)
}

func TestPrewarm(t *testing.T) {
	svc, q := newTestService(t)
	fileID := uploadFixture(t, svc)

	task, err := svc.Prewarm(context.Background(), fileID)
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, fileID, task.FileID)
	assert.Equal(t, models.StatusPending, task.Status)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, queue.TaskTypePrewarm, q.enqueued[0].Type)
	assert.Equal(t, fileID, q.enqueued[0].FileID)

	status := q.status(task.ID)
	require.NotNil(t, status)
	assert.Equal(t, "pending", status.Status)
}

func TestPrewarmMissingFile(t *testing.T) {
	svc, q := newTestService(t)

	_, err := svc.Prewarm(context.Background(), "no-such-file.ofd")
	assert.Error(t, err)
	assert.Empty(t, q.enqueued)
}

func TestHandlePrewarm(t *testing.T) {
	svc, q := newTestService(t)
	fileID := uploadFixture(t, svc)

	task := &queue.Task{ID: "task-1", Type: queue.TaskTypePrewarm, FileID: fileID}
	require.NoError(t, svc.HandlePrewarm(context.Background(), task))

	status := q.status("task-1")
	require.NotNil(t, status)
	assert.Equal(t, string(models.StatusCompleted), status.Status)
	assert.Equal(t, 1.0, status.Progress)
}

func TestHandlePrewarmFailure(t *testing.T) {
	svc, q := newTestService(t)

	task := &queue.Task{ID: "task-2", Type: queue.TaskTypePrewarm, FileID: "missing.ofd"}
	require.Error(t, svc.HandlePrewarm(context.Background(), task))

	status := q.status("task-2")
	require.NotNil(t, status)
	assert.Equal(t, string(models.StatusFailed), status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestHandlePrewarmInvalidTask(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Error(t, svc.HandlePrewarm(context.Background(), nil))
	assert.Error(t, svc.HandlePrewarm(context.Background(), &queue.Task{ID: "x"}))
}

func TestGetTaskStatus(t *testing.T) {
	svc, q := newTestService(t)
	require.NoError(t, q.SaveStatus(context.Background(), &queue.TaskStatus{
		TaskID:   "task-3",
		Status:   "running",
		Progress: 0.5,
	}))

	task, err := svc.GetTaskStatus(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, "task-3", task.ID)
	assert.Equal(t, models.StatusRunning, task.Status)
	assert.Equal(t, 0.5, task.Progress)

	_, err = svc.GetTaskStatus(context.Background(), "unknown")
	assert.Error(t, err)
}
