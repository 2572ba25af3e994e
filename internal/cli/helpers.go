// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface functionality.
// This file contains shared helper functions used across multiple CLI commands.
package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// formatDuration formats a time.Duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// outputJSON outputs data as JSON.
func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// promptInput prompts the user for input.
func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// ValidateOutputPath ensures path is safe for writing.
// Prevents path traversal by validating the path is within allowed directories.
func ValidateOutputPath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if strings.Contains(path, "..") {
		return "", errors.New("path traversal not allowed")
	}

	// Ensure within allowed directories. Proper boundary checking,
	// not HasPrefix: /home/userEVIL must not match /home/user.
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()

	allowed := []string{home, cwd, os.TempDir()}
	isAllowed := false
	for _, dir := range allowed {
		if dir == "" {
			continue
		}
		if isPathWithinDir(abs, dir) {
			isAllowed = true
			break
		}
	}

	if !isAllowed {
		return "", fmt.Errorf("path must be within home, cwd, or temp directory")
	}

	return abs, nil
}

// isPathWithinDir checks if a path is within a directory, ensuring proper
// path boundaries.
func isPathWithinDir(path, dir string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(dir)

	if cleanPath == cleanDir {
		return true
	}

	dirWithSep := cleanDir + string(filepath.Separator)
	return strings.HasPrefix(cleanPath, dirWithSep)
}
