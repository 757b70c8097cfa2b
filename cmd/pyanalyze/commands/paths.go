package commands

import (
	"log/slog"
	"os"

	"github.com/Sumatoshi-tech/pyanalyze/internal/modkey"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyhost"
)

// resolvePaths expands the CLI's positional path arguments into a flat list
// of Python files: directories are walked with pyhost.DiscoverFiles, plain
// files are taken as-is. No arguments means "everything under root".
func resolvePaths(root string, args []string) ([]string, error) {
	if len(args) == 0 {
		return pyhost.DiscoverFiles(root)
	}

	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, arg)

			continue
		}

		found, err := pyhost.DiscoverFiles(arg)
		if err != nil {
			return nil, err
		}

		files = append(files, found...)
	}

	return files, nil
}

func moduleNameFor(root, file string) string {
	return pyhost.ModuleNameForPath(root, file)
}

func moduleKeyFor(module *pyast.Module) modkey.Key {
	return modkey.New(module.Name, module.FilePath, module.IsTypeshed)
}

// logLevel maps a config logging level string to slog.Level, defaulting to
// Info for an empty or unrecognized value.
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
