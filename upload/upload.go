// Package upload uploads local or remote files to an object store under a throughput cap.
package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitrise-io/go-s3up/input"
	"github.com/bitrise-io/go-s3up/internal"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-s3up/upload/filelist"
	"github.com/bitrise-io/go-s3up/upload/keytemplate"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"
)

// estimateMargin is added to the estimated transfer time to account for request overhead.
const estimateMargin = 0.15

// UploadInput is the information that comes from the command line.
type UploadInput struct {
	// Source is a file or directory path, a `file://` path or an http(s) URL.
	Source string
	Bucket string
	// Key is the object key template, evaluated for every uploaded file. Defaults to the path relative to the source.
	Key string
	// Include is the doublestar pattern selecting files when Source is a directory.
	Include string
	// Rate is the throughput cap, as a human readable size per second (e.g. 500KB, 5MB).
	Rate string
	// ChunkSize is the part size, as a human readable size. Defaults to one second worth of data at Rate,
	// kept between 5MB and 5GB.
	ChunkSize string
	// Digest is md5 or sha256. Defaults to md5.
	Digest string
	// Pacing is average or token-bucket. Defaults to average.
	Pacing string
	// Retries is the number of extra attempts for a part whose submission failed transiently. 0 disables retrying.
	Retries     uint
	PartTimeout time.Duration
	// DryRun stops after planning: nothing is sent to the store.
	DryRun  bool
	Verbose bool
}

// Summary describes a finished run.
type Summary struct {
	Files    int
	Bytes    int64
	Duration time.Duration
	// Throughput is the effective rate of the whole run in bytes per second.
	Throughput float64
	Results    []transfer.Result
}

func (s Summary) throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (Summary, error)
}

// StoreFactory connects to the object store. It is only called when something is actually uploaded.
type StoreFactory func(ctx context.Context) (transfer.Store, error)

type uploadConfig struct {
	Source      string
	Bucket      string
	Key         string
	Include     string
	Rate        int64
	ChunkSize   int64
	Digest      transfer.DigestAlgorithm
	Pacing      transfer.PacingStrategy
	Retries     uint
	PartTimeout time.Duration
	DryRun      bool
}

type filePlan struct {
	entry       filelist.Entry
	key         string
	contentType string
	plan        transfer.Plan
}

type uploader struct {
	envRepo      env.Repository
	logger       log.Logger
	os           internal.OsProxy
	fileProvider input.FileProvider
	storeFactory StoreFactory
	retryWait    time.Duration
}

// NewUploader creates an Uploader. `storeFactory` can be nil, in that case the store is configured from the environment.
func NewUploader(
	envRepo env.Repository,
	logger log.Logger,
	pathProvider pathutil.PathProvider,
	pathModifier pathutil.PathModifier,
	downloader input.FileDownloader,
	storeFactory StoreFactory,
) *uploader {
	if storeFactory == nil {
		storeFactory = NewEnvStoreFactory(envRepo, logger)
	}
	return &uploader{
		envRepo:      envRepo,
		logger:       logger,
		os:           internal.RealOS{},
		fileProvider: input.NewFileProvider(downloader, pathProvider, pathModifier),
		storeFactory: storeFactory,
		retryWait:    transfer.DefaultConfig(1).RetryWait,
	}
}

// Upload ...
func (u *uploader) Upload(ctx context.Context, input UploadInput) (Summary, error) {
	u.logger.TDebugf("Upload start")
	defer func() {
		u.logger.TDebugf("Upload done")
	}()

	config, err := u.createConfig(input)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse inputs: %w", err)
	}
	u.logger.TDebugf("Config created")

	tracker := newStepTracker(u.envRepo, u.logger)
	defer tracker.wait()

	localPath, cleanup, err := u.fileProvider.LocalPath(ctx, config.Source)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to resolve source %s: %w", config.Source, err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			u.logger.Warnf("Failed to remove downloaded source: %s", err)
		}
	}()
	u.logger.Debugf("Local source: %s", localPath)

	list, err := filelist.NewCollector(u.os).Collect(localPath, config.Include)
	if err != nil {
		return Summary{}, err
	}
	if len(list.Entries) == 0 {
		u.logger.Warnf("No files to upload in %s", localPath)
		return Summary{}, nil
	}

	plans, err := u.planFiles(list, config)
	if err != nil {
		return Summary{}, err
	}
	u.logEstimate(list, config)

	if config.DryRun {
		u.logger.Println()
		u.logger.Infof("Dry run, nothing is uploaded:")
		for _, p := range plans {
			u.logger.Printf("- %s -> s3://%s/%s (%s, %d part(s) of %s)", p.entry.Rel, config.Bucket, p.key, units.BytesSize(float64(p.plan.TotalSize)), p.plan.ChunkCount, units.BytesSize(float64(p.plan.ChunkSize)))
		}
		return Summary{Files: len(plans), Bytes: list.TotalSize()}, nil
	}

	store, err := u.storeFactory(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to connect to the store: %w", err)
	}
	u.logger.TDebugf("Store created")

	summary := Summary{}
	startTime := time.Now()
	for i, p := range plans {
		u.logger.Println()
		u.logger.Infof("Uploading %s (%d/%d)...", p.entry.Rel, i+1, len(plans))

		result, err := u.uploadFile(ctx, store, config, p, tracker)
		if err != nil {
			summary.Duration = time.Since(startTime)
			return summary, fmt.Errorf("upload of %s failed: %w", p.entry.Rel, err)
		}

		summary.Files++
		summary.Bytes += result.Bytes
		summary.Results = append(summary.Results, *result)
		u.logger.Donef("Uploaded to s3://%s/%s in %s", result.Bucket, result.Key, result.Duration.Round(time.Millisecond))
		u.logger.Printf("%d part(s), mean part duration: %s, effective throughput: %s/s", result.Parts, result.MeanPartDuration.Round(time.Millisecond), units.BytesSize(result.Throughput))
	}
	summary.Duration = time.Since(startTime)
	summary.Throughput = summary.throughput()
	tracker.logRunFinished(summary)

	return summary, nil
}

func (u *uploader) createConfig(input UploadInput) (uploadConfig, error) {
	if strings.TrimSpace(input.Source) == "" {
		return uploadConfig{}, fmt.Errorf("source should not be empty")
	}
	if strings.TrimSpace(input.Bucket) == "" {
		return uploadConfig{}, fmt.Errorf("bucket should not be empty")
	}

	rate, err := parseSize("rate", input.Rate)
	if err != nil {
		return uploadConfig{}, err
	}

	chunkSize := transfer.DefaultChunkSize(rate)
	if input.ChunkSize != "" {
		if chunkSize, err = parseSize("chunk size", input.ChunkSize); err != nil {
			return uploadConfig{}, err
		}
		if chunkSize < transfer.MinChunkSize {
			return uploadConfig{}, fmt.Errorf("chunk size %s is below the minimum part size (%s)", units.BytesSize(float64(chunkSize)), units.BytesSize(float64(transfer.MinChunkSize)))
		}
		if chunkSize > transfer.MaxChunkSize {
			return uploadConfig{}, fmt.Errorf("chunk size %s is above the maximum part size (%s)", units.BytesSize(float64(chunkSize)), units.BytesSize(float64(transfer.MaxChunkSize)))
		}
	}

	digest, err := transfer.ParseDigestAlgorithm(input.Digest)
	if err != nil {
		return uploadConfig{}, err
	}

	pacing := transfer.PacingStrategy(input.Pacing)
	if _, err := transfer.NewPacer(pacing, rate, chunkSize); err != nil {
		return uploadConfig{}, err
	}

	if input.PartTimeout < 0 {
		return uploadConfig{}, fmt.Errorf("part timeout should not be negative")
	}

	return uploadConfig{
		Source:      input.Source,
		Bucket:      input.Bucket,
		Key:         input.Key,
		Include:     input.Include,
		Rate:        rate,
		ChunkSize:   chunkSize,
		Digest:      digest,
		Pacing:      pacing,
		Retries:     input.Retries,
		PartTimeout: input.PartTimeout,
		DryRun:      input.DryRun,
	}, nil
}

// parseSize parses human readable sizes with binary multipliers (1KB = 1024 bytes).
func parseSize(name, value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("%s should not be empty", name)
	}
	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("%s should be positive, got %s", name, value)
	}
	return size, nil
}

// planFiles evaluates the key and the chunk plan of every file, so that nothing is uploaded if any of them is invalid.
func (u *uploader) planFiles(list filelist.List, config uploadConfig) ([]filePlan, error) {
	model := keytemplate.NewModel(u.envRepo, u.logger, list.Root)

	var plans []filePlan
	keys := map[string]string{}
	for _, entry := range list.Entries {
		key, err := model.Evaluate(config.Key, keytemplate.File{Rel: entry.Rel})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate key template for %s: %w", entry.Rel, err)
		}
		if other, ok := keys[key]; ok {
			return nil, fmt.Errorf("%s and %s would both be uploaded to key %s", other, entry.Rel, key)
		}
		keys[key] = entry.Rel

		plan, err := transfer.NewPlan(entry.Path, entry.Size, config.ChunkSize)
		if err != nil {
			return nil, err
		}
		if err := checkPartLimit(plan); err != nil {
			return nil, err
		}

		plans = append(plans, filePlan{
			entry:       entry,
			key:         key,
			contentType: u.detectContentType(entry.Path),
			plan:        plan,
		})
	}
	return plans, nil
}

// checkPartLimit rejects plans a multipart upload cannot hold.
func checkPartLimit(plan transfer.Plan) error {
	if plan.ChunkCount <= transfer.MaxParts {
		return nil
	}
	return &transfer.InvalidPlanError{
		Path:      plan.Path,
		FileSize:  plan.TotalSize,
		ChunkSize: plan.ChunkSize,
		Reason:    fmt.Sprintf("%d parts, at most %d are allowed, increase the chunk size", plan.ChunkCount, transfer.MaxParts),
	}
}

func (u *uploader) detectContentType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		u.logger.Warnf("Failed to detect content type of %s: %s", path, err)
		return ""
	}
	return mtype.String()
}

func (u *uploader) logEstimate(list filelist.List, config uploadConfig) {
	total := list.TotalSize()
	estimate := time.Duration(float64(total) / float64(config.Rate) * (1 + estimateMargin) * float64(time.Second))

	u.logger.Println()
	u.logger.Printf("Files: %d", len(list.Entries))
	u.logger.Printf("Total size: %s", units.BytesSize(float64(total)))
	u.logger.Printf("Rate limit: %s/s, chunk size: %s", units.BytesSize(float64(config.Rate)), units.BytesSize(float64(config.ChunkSize)))
	u.logger.Printf("Estimated duration: %s", estimate.Round(time.Second))
}

func (u *uploader) uploadFile(ctx context.Context, store transfer.Store, config uploadConfig, p filePlan, tracker stepTracker) (*transfer.Result, error) {
	file, err := u.os.Open(p.entry.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", p.entry.Path, err)
		}
	}()

	transferConfig := transfer.DefaultConfig(config.Rate)
	transferConfig.Digest = config.Digest
	transferConfig.Pacing = config.Pacing
	transferConfig.SubmitRetries = config.Retries
	transferConfig.RetryWait = u.retryWait
	transferConfig.PartTimeout = config.PartTimeout
	transferConfig.Events = transfer.Handlers{newEventLogger(u.logger), tracker}

	result, err := transfer.New(store, transferConfig, u.logger).Upload(ctx, transfer.Job{
		Bucket:      config.Bucket,
		Key:         p.key,
		ContentType: p.contentType,
		Plan:        p.plan,
		Source:      file,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
