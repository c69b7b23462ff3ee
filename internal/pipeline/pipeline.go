package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-http-kit/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"

	"github.com/shouni/go-pose-kit/internal/config"
	"github.com/shouni/go-pose-kit/pkg/asset"
	"github.com/shouni/go-pose-kit/pkg/domain"
	"github.com/shouni/go-pose-kit/pkg/identity"
	"github.com/shouni/go-pose-kit/pkg/normalizer"
	"github.com/shouni/go-pose-kit/pkg/runner"
	"github.com/shouni/go-pose-kit/pkg/workflow"
)

// setupAppContext は、提供された設定と共有コンポーネントを使用して、アプリケーションコンテキストを初期化して返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*workflow.Manager, *asset.Loader, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	gcsFactory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.InputReader()
	if err != nil {
		return nil, nil, err
	}
	writer, err := gcsFactory.OutputWriter()
	if err != nil {
		return nil, nil, err
	}

	// IDENTITY_DIR が指定されていればファイルベースで永続化、
	// 未指定ならインメモリで動作するのだ。
	var kv identity.KeyValue
	if cfg.IdentityDir != "" {
		kv, err = identity.NewRemoteKV(reader, writer, cfg.IdentityDir)
		if err != nil {
			return nil, nil, fmt.Errorf("永続ストアの初期化に失敗しました: %w", err)
		}
	}

	manager, err := workflow.New(ctx, workflow.ManagerArgs{
		Config:     cfg.ToWorkflow(),
		HTTPClient: httpClient,
		Reader:     reader,
		Writer:     writer,
		KV:         kv,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ワークフローの初期化に失敗しました: %w", err)
	}

	loader, err := asset.NewLoader(httpClient, reader)
	if err != nil {
		return nil, nil, err
	}
	return manager, loader, nil
}

// ExecuteIdentitySet は、ベースキャラクター画像を読み込んで永続ストアに登録するのだ。
func ExecuteIdentitySet(ctx context.Context, cfg *config.Config) error {
	manager, loader, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	img, err := loader.Load(ctx, cfg.Options.BaseImage)
	if err != nil {
		return err
	}

	if err := manager.Store().Save(ctx, domain.BaseIdentity{Image: img}); err != nil {
		return err
	}

	slog.Info("ベースキャラクターを登録したのだ！", "source", cfg.Options.BaseImage, "mime_type", img.MimeType)
	return nil
}

// ExecuteIdentityClear は、登録済みのベースキャラクターを破棄するのだ。
func ExecuteIdentityClear(ctx context.Context, cfg *config.Config) error {
	manager, _, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	if err := manager.Store().Clear(ctx); err != nil {
		return err
	}

	slog.Info("ベースキャラクターを破棄したのだ")
	return nil
}

// ExecuteDescribe は、ポーズソースを正規化して記述テキストだけを出力するのだ。
// 生成は行わないため、記述の事前確認やプロンプト調整に便利なのだ。
func ExecuteDescribe(ctx context.Context, cfg *config.Config) (string, error) {
	manager, loader, err := setupAppContext(ctx, cfg)
	if err != nil {
		return "", err
	}

	src, err := resolvePoseSource(ctx, loader, cfg)
	if err != nil {
		return "", err
	}

	norm, err := normalizer.New(manager.Vision())
	if err != nil {
		return "", err
	}

	desc, err := norm.Normalize(ctx, src)
	if err != nil {
		return "", err
	}

	slog.Info("ポーズ記述の正規化が完了したのだ", "description", string(desc))
	return string(desc), nil
}

// ExecuteGenerate は、ワークフロー一式（正規化→生成→保存）を実行するのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	manager, loader, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	machine, err := manager.BuildMachine()
	if err != nil {
		return err
	}
	defer machine.Teardown()

	if err := machine.Restore(ctx); err != nil {
		return err
	}

	// --base-image が指定されていれば、その場で登録（置換）するのだ
	if cfg.Options.BaseImage != "" {
		img, err := loader.Load(ctx, cfg.Options.BaseImage)
		if err != nil {
			return err
		}
		if err := machine.SetIdentity(ctx, img); err != nil {
			return err
		}
	}

	if snap := machine.Snapshot(); !snap.HasIdentity {
		return fmt.Errorf("ベースキャラクターが登録されていません。--base-image で指定するか identity set を実行してほしいのだ")
	}

	req, err := buildPoseRequest(ctx, loader, cfg)
	if err != nil {
		return err
	}

	poseRunner := runner.NewPoseImageRunner(machine, manager.Writer())

	outputDir := cfg.Options.OutputDir
	if outputDir == "" {
		outputDir = asset.DefaultOutputDir
	}

	path, err := poseRunner.RunAndSave(ctx, req, outputDir)
	if err != nil {
		return err
	}

	slog.Info("新しいポーズが完成したのだ！", "path", path)
	return nil
}

// ExecuteBatch は、ポーズ指定リストを読み込んで並列生成・連番保存を行うのだ。
func ExecuteBatch(ctx context.Context, cfg *config.Config) error {
	manager, _, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	id, ok, err := manager.Store().Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ベースキャラクターが登録されていません。先に identity set を実行してほしいのだ")
	}

	poses, err := readPoseList(ctx, manager, cfg.Options.PoseFile)
	if err != nil {
		return err
	}

	norm, err := normalizer.New(manager.Vision())
	if err != nil {
		return err
	}
	orch, err := manager.BuildOrchestrator()
	if err != nil {
		return err
	}
	batch, err := runner.NewBatchPoseRunner(norm, orch, manager.Writer(), nil)
	if err != nil {
		return err
	}

	outputDir := cfg.Options.OutputDir
	if outputDir == "" {
		outputDir = asset.DefaultOutputDir
	}

	paths, err := batch.RunAndSave(ctx, id, poses, outputDir)
	if err != nil {
		return err
	}

	slog.Info("バッチ生成が完了したのだ！", "count", len(paths))
	return nil
}

// resolvePoseSource は、CLI オプションからポーズソースを組み立てるのだ。
func resolvePoseSource(ctx context.Context, loader *asset.Loader, cfg *config.Config) (domain.PoseSource, error) {
	if cfg.Options.PoseText != "" && cfg.Options.PoseImage != "" {
		return domain.PoseSource{}, fmt.Errorf("--pose-text と --pose-image は同時に指定できません")
	}

	switch {
	case cfg.Options.PoseText != "":
		return domain.PoseSource{Kind: domain.PoseSourceText, Text: cfg.Options.PoseText}, nil
	case cfg.Options.PoseImage != "":
		img, err := loader.Load(ctx, cfg.Options.PoseImage)
		if err != nil {
			return domain.PoseSource{}, err
		}
		return domain.PoseSource{Kind: domain.PoseSourceImage, Image: img}, nil
	default:
		return domain.PoseSource{}, fmt.Errorf("ポーズ指定（--pose-text または --pose-image）がありません")
	}
}

// buildPoseRequest は、CLI オプションからランナーへのリクエストを組み立てるのだ。
func buildPoseRequest(ctx context.Context, loader *asset.Loader, cfg *config.Config) (runner.PoseRequest, error) {
	src, err := resolvePoseSource(ctx, loader, cfg)
	if err != nil {
		return runner.PoseRequest{}, err
	}

	req := runner.PoseRequest{
		Mode:                src.Kind,
		Text:                src.Text,
		DescriptionOverride: cfg.Options.Description,
	}
	if src.Kind == domain.PoseSourceImage {
		img := src.Image
		req.PoseImage = &img
	}
	return req, nil
}

// readPoseList は、1行1ポーズのテキストファイルを読み込むのだ。
// 空行と # 始まりのコメント行は無視するのだ。
func readPoseList(ctx context.Context, manager *workflow.Manager, path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("ポーズリスト（--pose-file）を指定してほしいのだ")
	}

	rc, err := manager.Reader().Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ポーズリスト '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	var poses []string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		poses = append(poses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ポーズリスト '%s' の走査に失敗しました: %w", path, err)
	}
	if len(poses) == 0 {
		return nil, fmt.Errorf("ポーズリスト '%s' に有効な行がありません", path)
	}
	return poses, nil
}
