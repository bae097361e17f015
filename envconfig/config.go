// config.go - Haupt-Konfigurationsfunktionen fuer filmvision
//
// Dieses Modul enthaelt:
// - Models: Gibt das Gewichts-Verzeichnis zurueck (FILMVISION_MODELS)
// - LogLevel: Gibt Log-Level zurueck (FILMVISION_DEBUG)
// - Var: Liest und bereinigt eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Encoder-Defaults (Variante, Gewichte, Pooling, ...)
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Models gibt das Verzeichnis mit vortrainierten Gewichten zurueck
// Konfigurierbar via FILMVISION_MODELS
// Default: $HOME/.filmvision/models
func Models() string {
	if s := Var("FILMVISION_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "filmvision", "models")
	}

	return filepath.Join(home, ".filmvision", "models")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via FILMVISION_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FILMVISION_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
