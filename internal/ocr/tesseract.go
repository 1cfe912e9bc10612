package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Tesseract runs the tesseract command-line engine.
type Tesseract struct {
	Binary      string
	Language    string
	TessdataDir string
	// PSM 6: one uniform block of text.
	PSM int
	// OEM 1 selects the LSTM engine.
	OEM int
}

// NewTesseract returns an engine configured for French back covers.
func NewTesseract(binary, language, tessdataDir string, psm, oem int) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "fra"
	}
	return &Tesseract{
		Binary:      binary,
		Language:    language,
		TessdataDir: tessdataDir,
		PSM:         psm,
		OEM:         oem,
	}
}

// Available reports whether the binary can be found on PATH.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.Binary)
	return err == nil
}

func (t *Tesseract) args(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", t.Language, "--oem", strconv.Itoa(t.OEM), "--psm", strconv.Itoa(t.PSM)}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	return args
}

// Recognize runs tesseract on imagePath and returns its stdout. The process
// is killed when ctx is done.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, t.args(imagePath)...)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return stdout.String(), nil
}
