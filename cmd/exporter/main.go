package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"vk-dialog-export/internal/adapters/render"
	"vk-dialog-export/internal/export"
	applog "vk-dialog-export/internal/log"
	"vk-dialog-export/internal/pkg/config"
	"vk-dialog-export/internal/pkg/term"
	"vk-dialog-export/internal/ports"
	"vk-dialog-export/internal/progress"
	"vk-dialog-export/internal/vkapi"
)

// target — один диалог, выбранный для экспорта.
type target struct {
	Type export.DialogType
	ID   int64
}

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Флаги командной строки; значения по умолчанию берутся из конфигурации
	person := flag.Int64("person", 0, "ID of person whose dialog you want to export")
	chat := flag.Int64("chat", 0, "ID of group chat which you want to export")
	group := flag.Int64("group", 0, "ID of public group whose dialog you want to export")
	flag.BoolVar(&cfg.Downloads.Docs, "docs", cfg.Downloads.Docs, "Do we need to download documents?")
	flag.IntVar(&cfg.Downloads.DocsDepth, "docs-depth", cfg.Downloads.DocsDepth, "Max repost nesting level at which documents are still downloaded")
	flag.BoolVar(&cfg.Downloads.Audio, "audio", cfg.Downloads.Audio, "Do we need to download audio?")
	flag.IntVar(&cfg.Downloads.AudioDepth, "audio-depth", cfg.Downloads.AudioDepth, "Max repost nesting level at which audio files are still downloaded")
	flag.BoolVar(&cfg.Downloads.NoVoice, "no-voice", cfg.Downloads.NoVoice, "Do not download voice messages")
	flag.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "Directory for output files")
	flag.StringVar(&cfg.Output.Format, "format", cfg.Output.Format, "Output format (json, xlsx)")
	flag.BoolVar(&cfg.Downloads.SaveRaw, "save-raw", cfg.Downloads.SaveRaw, "Save raw API responses in output")
	flag.Parse()

	// 3. Инициализация логгера с маскировкой токена
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := applog.NewMaskedLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 4. Валидация конфигурации (после применения флагов)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 5. Подготовка выходного каталога
	outputDir, err := filepath.Abs(os.ExpandEnv(cfg.Output.Dir))
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if info, statErr := os.Stat(outputDir); statErr == nil && !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", outputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	cfg.Output.Dir = outputDir
	fmt.Printf("Output directory is %s\n", outputDir)

	// 6. Получение токена доступа
	if cfg.Auth.Token == "" {
		if err := promptToken(cfg); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := vkapi.NewClient(cfg.Auth.Token, vkapi.WithLogger(logger))

	// 7. Выбор диалогов
	targets, err := selectTargets(ctx, api, *person, *chat, *group)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no dialogs to export")
	}

	if !cfg.Downloads.Docs {
		fmt.Println("Attached documents are not downloaded by default. Restart with -docs to enable downloading documents")
	}

	var renderer ports.Renderer
	switch cfg.Output.Format {
	case "xlsx":
		renderer = render.NewXLSXRenderer()
	default:
		renderer = render.NewJSONRenderer()
	}

	opts := export.Options{
		Audio:      cfg.Downloads.Audio,
		AudioDepth: cfg.Downloads.AudioDepth,
		Docs:       cfg.Downloads.Docs,
		DocsDepth:  cfg.Downloads.DocsDepth,
		NoVoice:    cfg.Downloads.NoVoice,
		SaveRaw:    cfg.Downloads.SaveRaw,
	}

	// 8. Экспорт
	plural := ""
	if len(targets) > 1 {
		plural = "s"
	}
	fmt.Printf("Exporting %d dialog%s\n", len(targets), plural)
	reporter := progress.NewConsole(len(targets))

	for _, tgt := range targets {
		exporter := export.NewDialogExporter(api, tgt.Type, tgt.ID, outputDir, opts,
			export.WithProgress(reporter),
			export.WithLogger(logger),
		)

		result, err := exporter.Export(ctx)
		if err != nil {
			return fmt.Errorf("failed to export dialog %d: %w", tgt.ID, err)
		}

		data, err := renderer.Render(result)
		if err != nil {
			return fmt.Errorf("failed to render dialog %d: %w", tgt.ID, err)
		}

		outFile := filepath.Join(outputDir, fmt.Sprintf("%d.%s", tgt.ID, renderer.Extension()))
		if err := os.WriteFile(outFile, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outFile, err)
		}

		reporter.NextStage()
	}

	return nil
}

// promptToken печатает инструкции по ручной OAuth-авторизации и запрашивает
// токен через терминал без отображения вводимых символов.
func promptToken(cfg *config.Config) error {
	fmt.Println("You need to authorize this tool to access your private messages on vk.com.")
	fmt.Println("To do it, you need to:")
	fmt.Println("1. Open the following url in your browser:")
	fmt.Println("   " + vkapi.AuthURL(cfg.Auth.AppID))
	fmt.Println("2. Give access to the application.")
	fmt.Println("3. Copy access_token from the url of the next page and paste it below.")

	token, err := term.NewTerminal().Token()
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if token == "" {
		return fmt.Errorf("access token is required")
	}
	cfg.Auth.Token = token
	return nil
}

// selectTargets возвращает выбранные флагами диалоги, либо перечисляет все
// диалоги учетной записи, если ни один не указан.
func selectTargets(ctx context.Context, api ports.Caller, person, chat, group int64) ([]target, error) {
	switch {
	case person != 0:
		return []target{{Type: export.DialogUser, ID: person}}, nil
	case chat != 0:
		return []target{{Type: export.DialogChat, ID: chat}}, nil
	case group != 0:
		return []target{{Type: export.DialogGroup, ID: group}}, nil
	}

	fmt.Println("You have not provided any specific dialogs to export, assuming you want to export them all...")
	fmt.Println("Enumerating your dialogs...")
	return fetchAllDialogs(ctx, api)
}

// fetchAllDialogs постранично перечисляет все диалоги учетной записи.
func fetchAllDialogs(ctx context.Context, api ports.Caller) ([]target, error) {
	var targets []target

	offset := 0
	for {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("count", "200")

		response, err := api.Call(ctx, "messages.getDialogs", params)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate dialogs: %w", err)
		}

		var page vkapi.Dialogs
		if err := json.Unmarshal(response, &page); err != nil {
			return nil, fmt.Errorf("failed to parse dialogs page: %w", err)
		}
		if len(page.Items) == 0 {
			return targets, nil
		}

		for _, item := range page.Items {
			if item.Message.ChatID != 0 {
				// Это групповая беседа
				targets = append(targets, target{Type: export.DialogChat, ID: item.Message.ChatID})
			} else {
				targets = append(targets, target{Type: export.DialogUser, ID: item.Message.UserID})
			}
		}
		offset += len(page.Items)
	}
}
