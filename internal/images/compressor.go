package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// compressorTool describes how to drive one external compression binary.
type compressorTool struct {
	defaultCmd string
	// args builds the command line. in is the original file, out the
	// destination; inPlace tools are handed a copy at out instead.
	args    func(in, out string) []string
	inPlace bool
}

// tools registry - single source of truth for per-format compressor wiring
var tools = map[string]compressorTool{
	"png": {
		defaultCmd: "pngquant",
		args: func(in, out string) []string {
			return []string{"--force", "--skip-if-larger", "--output", out, in}
		},
	},
	"jpeg": {
		defaultCmd: "jpegoptim",
		args: func(in, out string) []string {
			return []string{"--strip-all", "--quiet", out}
		},
		inPlace: true,
	},
	"webp": {
		defaultCmd: "cwebp",
		args: func(in, out string) []string {
			return []string{"-quiet", in, "-o", out}
		},
	},
}

// Compressor invokes external image compression binaries. A missing binary
// or a failed run is never fatal; callers fall back to the original bytes.
type Compressor struct {
	commands  map[string]string // format -> configured binary
	available map[string]bool   // LookPath results, probed once
	logger    *slog.Logger
}

// NewCompressor resolves the configured binaries. Empty paths fall back to
// the default command name; binaries not on PATH are marked unavailable and
// their formats pass through uncompressed.
func NewCompressor(pngquant, jpegoptim, cwebp string, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compressor{
		commands:  map[string]string{"png": pngquant, "jpeg": jpegoptim, "webp": cwebp},
		available: make(map[string]bool),
		logger:    logger,
	}
	for format, tool := range tools {
		cmd := c.commands[format]
		if cmd == "" {
			cmd = tool.defaultCmd
			c.commands[format] = cmd
		}
		if _, err := exec.LookPath(cmd); err != nil {
			c.logger.Warn("compressor binary not found, format passes through",
				"format", format, "command", cmd)
			continue
		}
		c.available[format] = true
	}
	return c
}

// detectFormat maps a file extension to a tool registry key.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".webp":
		return "webp"
	default:
		return ""
	}
}

// Compress runs the format's binary over src and returns the path of the
// compressed variant. Returns "" with nil error when the format is
// unsupported, the binary is unavailable, or the result is not smaller.
// The partial output file is removed on every failure path.
func (c *Compressor) Compress(ctx context.Context, src string) (string, error) {
	format := detectFormat(src)
	if format == "" || !c.available[format] {
		return "", nil
	}
	tool := tools[format]

	outDir := filepath.Join(filepath.Dir(src), "compressed")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create compressed dir: %w", err)
	}
	out := filepath.Join(outDir, filepath.Base(src))

	if tool.inPlace {
		if err := copyFile(src, out); err != nil {
			return "", err
		}
	}

	cmd := exec.CommandContext(ctx, c.commands[format], tool.args(src, out)...)
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("run %s: %w", c.commands[format], err)
	}

	smaller, err := isSmaller(out, src)
	if err != nil || !smaller {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return outFile.Close()
}

// isSmaller reports whether out is strictly smaller than src.
func isSmaller(out, src string) (bool, error) {
	outInfo, err := os.Stat(out)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", out, err)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", src, err)
	}
	return outInfo.Size() < srcInfo.Size(), nil
}
