package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal обеспечивает интерактивный ввод учетных данных через терминал.
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
}

// NewTerminal создает новый экземпляр Terminal.
func NewTerminal() *Terminal {
	return &Terminal{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinfd: int(os.Stdin.Fd()),
	}
}

// Token запрашивает access_token без отображения вводимых символов.
func (t *Terminal) Token() (string, error) {
	fmt.Fprint(t.out, "Enter access_token: ")
	byteToken, err := term.ReadPassword(t.stdinfd)
	if err != nil {
		return "", xerrors.Errorf("failed to read token: %w", err)
	}
	fmt.Fprintln(t.out) // Новая строка после ввода
	return strings.TrimSpace(string(byteToken)), nil
}

// UserID запрашивает идентификатор владельца токена.
func (t *Terminal) UserID() (string, error) {
	fmt.Fprint(t.out, "Enter user_id: ")
	userID, err := t.in.ReadString('\n')
	if err != nil {
		return "", xerrors.Errorf("failed to read user id: %w", err)
	}
	return strings.TrimSpace(userID), nil
}
