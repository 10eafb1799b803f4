// Package cli 通过子进程调用外部渲染器的策略，用于内置策略
// 无法处理的文件（嵌入字体、矢量图形、签名等）。
//
// 子进程协议（与第三方渲染器互操作，必须逐字段保持一致）：
//
//	<cli> metadata input.ofd
//	    工作目录为临时目录，stdout 输出单个 JSON 对象：
//	    {"meta":{...}, "capabilities":{...}, "pageRefs":[...]}
//	<cli> render --page <n> --format svg --output <base> input.ofd
//	    生成 <base>.svg，必需；<base>.json 为可选的文本项数组
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qingyan2022/ofd-previewer/internal/models"
	"github.com/qingyan2022/ofd-previewer/pkg/logger"
)

// Name 引擎名
const Name = "cli"

const (
	inputName      = "input.ofd"
	outputBase     = "page"
	defaultTimeout = 20 * time.Second
)

type Config struct {
	// Path 外部渲染器可执行文件路径，为空时策略不可用
	Path string
	// Timeout 单次子进程调用的超时，默认 20s
	Timeout time.Duration
	// KeepArtifacts 调试开关：保留临时工作目录
	KeepArtifacts bool
	// WorkRoot 工作目录的父目录，默认系统临时目录
	WorkRoot string
}

type Strategy struct {
	cfg    Config
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Strategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	return &Strategy{cfg: cfg, logger: log}
}

func (s *Strategy) Name() string { return Name }

// IsAvailable 仅当配置的可执行文件存在且可访问时为 true，
// 策略因此默认缺席、按需启用
func (s *Strategy) IsAvailable() bool {
	if s.cfg.Path == "" {
		return false
	}
	info, err := os.Stat(s.cfg.Path)
	return err == nil && !info.IsDir()
}

// CanRender 外部渲染器自行解释页引用，对任何文档都声明兼容
func (s *Strategy) CanRender(doc *models.ParsedDocument) bool { return true }

// metadataResponse 外部渲染器 metadata 命令的 stdout 约定
type metadataResponse struct {
	Meta         *cliMeta `json:"meta"`
	Capabilities *cliCaps `json:"capabilities"`
	PageRefs     []string `json:"pageRefs"`
}

type cliMeta struct {
	Pages           int     `json:"pages"`
	WidthMM         float64 `json:"widthMM"`
	HeightMM        float64 `json:"heightMM"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	CreationDate    string  `json:"creationDate"`
	TextExtractable bool    `json:"textExtractable"`
}

// cliCaps 的指针字段区分“显式 false”与“省略”：省略的子开关默认 true
type cliCaps struct {
	Text        *bool `json:"text"`
	Vector      *bool `json:"vector"`
	Images      *bool `json:"images"`
	Annotations *bool `json:"annotations"`
	Signatures  *bool `json:"signatures"`
}

func (s *Strategy) Parse(ctx context.Context, buf []byte) (*models.ParsedDocument, error) {
	workdir, cleanup, err := s.setupWorkdir(buf)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	stdout, err := s.run(ctx, workdir, "metadata", inputName)
	if err != nil {
		return nil, err
	}

	var resp metadataResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata JSON: %v", models.ErrInvalidDocument, err)
	}
	if resp.Meta == nil {
		return nil, fmt.Errorf("%w: metadata response missing meta object", models.ErrInvalidDocument)
	}
	if resp.Meta.Pages < 1 {
		return nil, fmt.Errorf("%w: page count %d", models.ErrInvalidDocument, resp.Meta.Pages)
	}

	refs := resp.PageRefs
	if len(refs) == 0 {
		// 未提供页引用时合成 page-1..page-N
		refs = make([]string, resp.Meta.Pages)
		for i := range refs {
			refs[i] = "page-" + strconv.Itoa(i+1)
		}
	}

	return &models.ParsedDocument{
		Metadata: models.DocumentMetadata{
			Pages:           resp.Meta.Pages,
			WidthMM:         resp.Meta.WidthMM,
			HeightMM:        resp.Meta.HeightMM,
			Title:           resp.Meta.Title,
			Author:          resp.Meta.Author,
			CreationDate:    resp.Meta.CreationDate,
			TextExtractable: resp.Meta.TextExtractable,
		},
		Capabilities: capabilitiesFrom(resp.Capabilities),
		Engine:       Name,
		PageRefs:     refs,
	}, nil
}

func (s *Strategy) RenderPage(ctx context.Context, buf []byte, doc *models.ParsedDocument, pageIndex int) (*models.RenderedPage, error) {
	if pageIndex < 0 || pageIndex >= len(doc.PageRefs) {
		return nil, fmt.Errorf("%w: page %d of %d", models.ErrInvalidPage, pageIndex+1, len(doc.PageRefs))
	}

	workdir, cleanup, err := s.setupWorkdir(buf)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	_, err = s.run(ctx, workdir,
		"render",
		"--page", strconv.Itoa(pageIndex+1),
		"--format", "svg",
		"--output", outputBase,
		inputName,
	)
	if err != nil {
		return nil, err
	}

	svgBytes, err := os.ReadFile(filepath.Join(workdir, outputBase+".svg"))
	if err != nil || len(bytes.TrimSpace(svgBytes)) == 0 {
		return nil, fmt.Errorf("%w: missing SVG output", models.ErrInvalidDocument)
	}

	var items []models.PageTextItem
	if jsonBytes, err := os.ReadFile(filepath.Join(workdir, outputBase+".json")); err == nil {
		if err := json.Unmarshal(jsonBytes, &items); err != nil {
			return nil, fmt.Errorf("%w: malformed text items JSON: %v", models.ErrInvalidDocument, err)
		}
	}

	return &models.RenderedPage{
		SVG:       string(svgBytes),
		TextItems: items,
	}, nil
}

// setupWorkdir 为一次调用创建唯一命名的临时工作目录并写入输入文件。
// 返回的 cleanup 在任何退出路径上都要被调用，KeepArtifacts 时只留不删
func (s *Strategy) setupWorkdir(buf []byte) (string, func(), error) {
	dir := filepath.Join(s.cfg.WorkRoot, "ofd-cli-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("%w: create workdir: %v", models.ErrStrategyExecutionFailed, err)
	}
	cleanup := func() {
		if s.cfg.KeepArtifacts {
			s.logger.Debug("keeping CLI artifacts", logger.String("workdir", dir))
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove workdir",
				logger.String("workdir", dir),
				logger.Error(err),
			)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, inputName), buf, 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: write input: %v", models.ErrStrategyExecutionFailed, err)
	}
	return dir, cleanup, nil
}

// run 在 workdir 中执行一次子进程调用。超时会强制杀掉子进程而不是
// 放任其悬挂，避免孤儿进程
func (s *Strategy) run(ctx context.Context, workdir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.Path, args...)
	cmd.Dir = workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	s.logger.Debug("CLI invocation finished",
		logger.String("command", args[0]),
		logger.Duration("elapsed", time.Since(start)),
	)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s exceeded %s", models.ErrStrategyTimeout, args[0], s.cfg.Timeout)
	}
	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = runErr.Error()
		}
		return nil, fmt.Errorf("%w: %s: %s", models.ErrStrategyExecutionFailed, args[0], detail)
	}
	return stdout.Bytes(), nil
}

// capabilitiesFrom 整个对象缺席表示委托的外部渲染器全能力；
// 对象存在时省略的子开关默认 true
func capabilitiesFrom(caps *cliCaps) models.DocumentCapabilities {
	if caps == nil {
		return models.DocumentCapabilities{
			Text: true, Vector: true, Images: true, Annotations: true, Signatures: true,
		}
	}
	flag := func(p *bool) bool {
		if p == nil {
			return true
		}
		return *p
	}
	return models.DocumentCapabilities{
		Text:        flag(caps.Text),
		Vector:      flag(caps.Vector),
		Images:      flag(caps.Images),
		Annotations: flag(caps.Annotations),
		Signatures:  flag(caps.Signatures),
	}
}
