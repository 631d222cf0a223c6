package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"vk-dialog-export/internal/ports"
)

const downloadAttempts = 3

// DownloaderOption — функциональная опция для настройки FileDownloader.
type DownloaderOption func(*FileDownloader)

// WithDownloaderHTTPClient устанавливает HTTP-клиент для скачивания.
func WithDownloaderHTTPClient(hc *http.Client) DownloaderOption {
	return func(d *FileDownloader) {
		if hc != nil {
			d.httpClient = hc
		}
	}
}

// WithDownloaderProgress устанавливает отчет о прогрессе.
func WithDownloaderProgress(p ports.Progress) DownloaderOption {
	return func(d *FileDownloader) {
		if p != nil {
			d.progress = p
		}
	}
}

// WithDownloaderLogger устанавливает логгер.
func WithDownloaderLogger(l *slog.Logger) DownloaderOption {
	return func(d *FileDownloader) {
		if l != nil {
			d.log = l
		}
	}
}

// FileDownloader надежно материализует удаленные бинарные ресурсы в каталоге
// вложений диалога. Гарантии: не более одного успешного скачивания на
// логический ресурс (уже скачанный непустой файл переиспользуется),
// не более трех попыток на ресурс, неудача деградирует в пустой путь и
// никогда не прерывает экспорт целиком.
type FileDownloader struct {
	httpClient *http.Client
	outputDir  string
	attachDir  string
	progress   ports.Progress
	log        *slog.Logger
}

// NewFileDownloader создает загрузчик, пишущий в подкаталог attachDir
// внутри outputDir. Возвращаемые пути всегда относительны outputDir.
func NewFileDownloader(outputDir, attachDir string, opts ...DownloaderOption) *FileDownloader {
	d := &FileDownloader{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		outputDir:  outputDir,
		attachDir:  attachDir,
		progress:   nopProgress{},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download скачивает url в файл с именем baseName. Пустой url — это не
// ошибка, а документированный случай недоступного ресурса (заблокированные
// аудио и документы), он сразу дает пустой путь. Если autoImageExt истинно и
// у baseName нет расширения, расширение выводится из Content-Type ответа.
// sizeHint используется только для отображения. Ошибка возвращается только
// при фатальной проблеме конфигурации каталога вложений.
func (d *FileDownloader) Download(ctx context.Context, srcURL, baseName string, autoImageExt bool, sizeHint int64) (string, error) {
	if srcURL == "" {
		return "", nil
	}

	absAttachDir := filepath.Join(d.outputDir, d.attachDir)
	if info, err := os.Stat(absAttachDir); err == nil && !info.IsDir() {
		return "", fmt.Errorf("не удалось создать каталог вложений %s: путь занят файлом", absAttachDir)
	}
	if err := os.MkdirAll(absAttachDir, 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать каталог вложений %s: %w", absAttachDir, err)
	}

	relPath := path.Join(d.attachDir, baseName)
	absPath := filepath.Join(d.outputDir, filepath.FromSlash(relPath))
	hasExt := filepath.Ext(baseName) != ""

	// Уже завершенное скачивание переиспользуется: повторный экспорт никогда
	// не перекачивает готовые ресурсы.
	if hasExt {
		if info, err := os.Stat(absPath); err == nil && info.Size() > 0 {
			return relPath, nil
		}
	} else if autoImageExt {
		// Расширение могло быть угадано в прошлый запуск, ищем файл по основе имени.
		if existing := findDownloadedImage(absAttachDir, baseName); existing != "" {
			return path.Join(d.attachDir, existing), nil
		}
	}

	updateStep := func() {
		displayName := baseName
		if autoImageExt && !hasExt {
			// Точное расширение узнается только из ответа, jpg — самый частый случай.
			displayName += ".jpg"
		} else if hasExt {
			displayName = path.Base(relPath)
		}
		if sizeHint > 0 {
			displayName += ", " + humanize.IBytes(uint64(sizeHint))
		}
		d.progress.StepMessage(srcURL + " -> " + displayName)
	}

	defer d.progress.ClearStepMessage()

	for attempt := 0; attempt < downloadAttempts; attempt++ {
		updateStep()

		downloadedPath, err := d.tryDownload(ctx, srcURL, relPath, absPath, autoImageExt && !hasExt)
		if err == nil {
			return downloadedPath, nil
		}
		d.log.DebugContext(ctx, "Попытка скачивания не удалась",
			"url", srcURL, "attempt", attempt+1, "error", err)
	}

	d.progress.Error(fmt.Sprintf("Failed to retrieve file (%s) after %d attempts, skipping", srcURL, downloadAttempts))
	return "", nil
}

// tryDownload выполняет одну попытку скачивания. Любая ошибка попытки
// проглатывается вызывающей стороной и считается одной неудачей.
func (d *FileDownloader) tryDownload(ctx context.Context, srcURL, relPath, absPath string, detectExt bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}

	if detectExt {
		ext := "." + guessImageExt(resp.Header.Get("Content-Type"))
		relPath += ext
		absPath += ext
	}

	out, err := os.Create(absPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		// Недописанный файл не должен сойти за завершенное скачивание.
		os.Remove(absPath)
		return "", err
	}
	return relPath, nil
}

// guessImageExt сопоставляет тип содержимого с расширением картинки.
// Неизвестный тип считается jpg как безопасное значение по умолчанию.
func guessImageExt(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch strings.ToLower(mediaType) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// findDownloadedImage ищет в каталоге непустой файл, чье имя без расширения
// совпадает с baseName. Возвращает имя найденного файла или пустую строку.
func findDownloadedImage(dir, baseName string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != baseName {
			continue
		}
		if info, err := entry.Info(); err == nil && info.Size() > 0 {
			return name
		}
	}
	return ""
}

// optionalPath превращает пустой путь в nil для полей filename.
func optionalPath(p string) *string {
	if p == "" {
		return nil
	}
	return &p
}

// nopProgress — заглушка, чтобы загрузчик работал и без отчета о прогрессе.
type nopProgress struct{}

func (nopProgress) NextStage()             {}
func (nopProgress) Update(step, total int) {}
func (nopProgress) StepMessage(msg string) {}
func (nopProgress) ClearStepMessage()      {}
func (nopProgress) Error(msg string)       {}
