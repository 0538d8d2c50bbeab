// Package common provides the shared logging, message-envelope, and
// routing-key primitives used by every NLDS consumer.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output to stderr for lines containing the
// text formatter's "level=error" marker and stdout for everything else,
// so container log collectors can apply different handling per stream.
// JSON-formatted lines carry no such marker and all go to stdout.
type OutputSplitter struct{}

// Write implements io.Writer, routing on the presence of "level=error".
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance every consumer derives its
// ContextLogger from.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
