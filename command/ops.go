package command

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-labreports/report"
)

// BatchRequest describes one report in a batch run.
type BatchRequest struct {
	Kind   report.Kind   `json:"kind"`
	Lab    string        `json:"lab,omitempty"`
	Format report.Format `json:"format,omitempty"`
}

// BatchLoader loads batch requests from a source.
type BatchLoader func(ctx context.Context) ([]BatchRequest, error)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// BatchCommand writes a set of reports into a directory from CLI or cron.
type BatchCommand struct {
	service    report.Service
	loader     BatchLoader
	outputDir  string
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	sleep      func(time.Duration)
	baseCtx    context.Context
	enqueue    func(ctx context.Context) error
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// WithBatchContext sets the context scheduled runs execute under.
func WithBatchContext(ctx context.Context) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.baseCtx = ctx
	}
}

// WithBatchEnqueue hands scheduled runs to fn instead of running them inline.
func WithBatchEnqueue(fn func(ctx context.Context) error) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.enqueue = fn
	}
}

// NewBatchCommand creates the report batch CLI/Cron command.
func NewBatchCommand(svc report.Service, outputDir string, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		service:   svc,
		loader:    loader,
		outputDir: outputDir,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"reports-batch"},
			Description: "Write a batch of lab reports to a directory",
			Group:       "reports",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 6 * * 1"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes scheduled batches.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		ctx := c.context()
		if c.enqueue != nil {
			return c.enqueue(ctx)
		}
		_, err := c.Run(ctx, "", "")
		return err
	}
}

// Execute runs a batch dispatched as a command.
func (c *BatchCommand) Execute(ctx context.Context, msg RunBatch) error {
	written, err := c.Run(ctx, msg.From, msg.Dir)
	if msg.Written != nil {
		*msg.Written = written
	}
	if res := gcmd.ResultFromContext[[]string](ctx); res != nil {
		res.Store(written)
	}
	return err
}

func (c *BatchCommand) context() context.Context {
	if c.baseCtx != nil {
		return c.baseCtx
	}
	return context.Background()
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// Run writes every requested report into dir (or the configured directory) and
// returns the paths written, in request order. A non-empty from loads requests from a JSON file.
func (c *BatchCommand) Run(ctx context.Context, from, dir string) ([]string, error) {
	if c == nil {
		return nil, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.service == nil {
		return nil, errors.New("report service is required", errors.CategoryValidation).
			WithTextCode("SERVICE_REQUIRED")
	}
	if strings.TrimSpace(dir) == "" {
		dir = c.outputDir
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("output directory is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_DIR_REQUIRED")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "create output directory failed").
			WithTextCode("OUTPUT_DIR_CREATE")
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, item := range requests {
		if c.limits.MaxRequests > 0 && len(written) >= c.limits.MaxRequests {
			break
		}
		path, err := c.writeOne(ctx, dir, item)
		if err != nil {
			return written, err
		}
		written = append(written, path)
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return written, nil
}

// writeOne renders into a temp file and renames it once the report is complete.
func (c *BatchCommand) writeOne(ctx context.Context, dir string, item BatchRequest) (string, error) {
	tmp, err := os.CreateTemp(dir, ".labreport-*")
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryExternal, "create report file failed").
			WithTextCode("REPORT_FILE_CREATE")
	}
	tmpName := tmp.Name()

	result, genErr := c.service.Generate(ctx, report.Request{
		Kind:   item.Kind,
		Lab:    item.Lab,
		Format: item.Format,
	}, tmp)
	closeErr := tmp.Close()
	if genErr == nil && closeErr != nil {
		genErr = closeErr
	}
	if genErr != nil {
		_ = os.Remove(tmpName)
		return "", report.AsGoError(genErr)
	}

	path := filepath.Join(dir, result.Filename)
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Wrap(err, errors.CategoryExternal, "move report file failed").
			WithTextCode("REPORT_FILE_RENAME")
	}
	return path, nil
}

func (c *BatchCommand) loadRequests(ctx context.Context, from string) ([]BatchRequest, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchRequestsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to JSON batch report requests'"`
	Dir  string `kong:"name='dir',help='Output directory'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.Run(context.Background(), c.From, c.Dir)
	return err
}

func loadBatchRequestsFromFile(path string) ([]BatchRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var requests []BatchRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return requests, nil
}

// FullBatch returns every roster report plus one inventory report per lab.
func FullBatch(labs []string, format report.Format) []BatchRequest {
	if format == "" {
		format = report.FormatPDF
	}
	requests := make([]BatchRequest, 0, len(labs)+4)
	for _, kind := range report.Kinds() {
		if kind == report.KindInventory {
			continue
		}
		requests = append(requests, BatchRequest{Kind: kind, Format: format})
	}
	for _, lab := range labs {
		if strings.TrimSpace(lab) == "" {
			continue
		}
		requests = append(requests, BatchRequest{Kind: report.KindInventory, Lab: lab, Format: format})
	}
	return requests
}

// CLIHandler exposes pruning via CLI.
func (h *PruneRunsHandler) CLIHandler() any {
	return &pruneCLI{handler: h}
}

// CLIOptions describes prune CLI metadata.
func (h *PruneRunsHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"reports-prune"},
		Description: "Remove old report run history",
		Group:       "reports",
	}
}

type pruneCLI struct {
	handler *PruneRunsHandler
}

func (c *pruneCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("prune handler is required", errors.CategoryInternal).
			WithTextCode("PRUNE_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), PruneRuns{})
}
