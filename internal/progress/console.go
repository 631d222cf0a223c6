package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

const barWidth = 20

// Console выводит однострочный индикатор прогресса в терминал,
// перерисовывая строку через возврат каретки. Ошибки печатаются над
// индикатором и не прерывают отображение.
type Console struct {
	mu          sync.Mutex
	out         io.Writer
	totalStages int
	curStage    int
	total       int
	step        int
	msg         string
}

// NewConsole создает консольный отчет о прогрессе на totalStages этапов.
func NewConsole(totalStages int) *Console {
	return &Console{
		out:         os.Stdout,
		totalStages: totalStages,
	}
}

// NewConsoleWriter создает консольный отчет, пишущий в произвольный io.Writer.
func NewConsoleWriter(out io.Writer, totalStages int) *Console {
	return &Console{
		out:         out,
		totalStages: totalStages,
	}
}

// NextStage завершает текущий этап и переходит к следующему.
func (c *Console) NextStage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total != 0 {
		c.step = c.total
		c.redraw()
	}
	fmt.Fprintln(c.out)
	c.curStage++
	c.step = 0
	c.total = 0
	c.msg = ""
}

// Update сообщает о прогрессе текущего этапа.
func (c *Console) Update(step, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.step = step
	c.total = total
	c.redraw()
}

// StepMessage выводит сообщение текущего шага рядом с индикатором.
func (c *Console) StepMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msg = msg
	c.redraw()
}

// ClearStepMessage убирает сообщение шага.
func (c *Console) ClearStepMessage() {
	c.StepMessage("")
}

// Error печатает нефатальную ошибку поверх строки прогресса.
func (c *Console) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprint(c.out, "\r"+msg+"\n")
	c.redraw()
}

func (c *Console) redraw() {
	var percent float64
	if c.total > 0 {
		percent = float64(c.step) / float64(c.total)
	}

	filled := int(percent * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	title := runewidth.FillRight(fmt.Sprintf("%d of %d", c.curStage+1, c.totalStages), 10)
	bar := runewidth.FillRight(strings.Repeat("#", filled), barWidth)
	line := fmt.Sprintf("%s [%s] (%d / %d)", title, bar, c.step, c.total)
	if c.msg != "" {
		line += " | " + c.msg
	}

	fmt.Fprint(c.out, "\r"+line)
}

// Nop — пустая реализация отчета о прогрессе для серверного режима и тестов.
type Nop struct{}

// NextStage ничего не делает.
func (Nop) NextStage() {}

// Update ничего не делает.
func (Nop) Update(step, total int) {}

// StepMessage ничего не делает.
func (Nop) StepMessage(msg string) {}

// ClearStepMessage ничего не делает.
func (Nop) ClearStepMessage() {}

// Error ничего не делает.
func (Nop) Error(msg string) {}
