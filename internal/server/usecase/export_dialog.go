package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"vk-dialog-export/internal/domain"
	"vk-dialog-export/internal/export"
	"vk-dialog-export/internal/pkg/config"
	"vk-dialog-export/internal/ports"
)

// ExportDialogUseCase запускает экспорт одного диалога по запросу сервера.
// На каждый запрос создается свежий экспортер: кэш сущностей и состояние
// загрузчика между диалогами не разделяются.
type ExportDialogUseCase struct {
	api ports.Caller
	cfg *config.Config
	log *slog.Logger
}

// NewExportDialogUseCase создает новый экземпляр ExportDialogUseCase.
func NewExportDialogUseCase(api ports.Caller, cfg *config.Config, log *slog.Logger) *ExportDialogUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ExportDialogUseCase{
		api: api,
		cfg: cfg,
		log: log,
	}
}

// ExportDialog экспортирует диалог заданного вида и идентификатора.
func (uc *ExportDialogUseCase) ExportDialog(ctx context.Context, dlgType string, id int64) (*domain.DialogExportResult, error) {
	t := export.DialogType(dlgType)
	if !t.Valid() {
		return nil, fmt.Errorf("неизвестный вид диалога: %q", dlgType)
	}

	uc.log.InfoContext(ctx, "Запуск экспорта диалога", "type", dlgType, "id", id)

	opts := export.Options{
		Audio:      uc.cfg.Downloads.Audio,
		AudioDepth: uc.cfg.Downloads.AudioDepth,
		Docs:       uc.cfg.Downloads.Docs,
		DocsDepth:  uc.cfg.Downloads.DocsDepth,
		NoVoice:    uc.cfg.Downloads.NoVoice,
		SaveRaw:    uc.cfg.Downloads.SaveRaw,
	}

	exporter := export.NewDialogExporter(uc.api, t, id, uc.cfg.Output.Dir, opts,
		export.WithLogger(uc.log),
	)
	return exporter.Export(ctx)
}
