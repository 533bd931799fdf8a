package lib

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
)

// Logger returns the shared application logger. When logFilePath is set the
// output goes to a (date-suffixed) file instead of stdout.
func Logger(logFilePath string) *lecho.Logger {
	target := os.Stdout

	if logFilePath != "" {
		extension := filepath.Ext(logFilePath)
		path := logFilePath
		if extension == "" {
			path = logFilePath + time.Now().Format("-2006-01-02") + ".log"
		}
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		if err != nil {
			panic(err)
		}
		target = file
	}

	return lecho.From(zerolog.New(target).Level(zerolog.InfoLevel).With().Timestamp().Logger())
}
