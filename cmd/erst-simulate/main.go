// Command erst-simulate reads a single simulation request from standard
// input and writes a single simulation response to standard output,
// exactly the single-shot contract the grounding source's own main()
// implements: one read, one println, process exits.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/erst-labs/simulate/internal/pipeline"
	"github.com/erst-labs/simulate/internal/simconfig"
	"github.com/erst-labs/simulate/internal/simlog"
	"github.com/erst-labs/simulate/internal/simresponse"
	"github.com/erst-labs/simulate/internal/simtypes"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 whenever a response — success or
// error — was written, non-zero only for the request-fatal
// pre-conditions that precede the first possible response write.
func run() int {
	cfg, err := simconfig.Resolve()
	if err != nil {
		os.Stderr.WriteString("failed to resolve configuration: " + err.Error() + "\n")
		return 1
	}

	logger := simlog.New(cfg).WithField("invocation_id", uuid.NewString())

	buf, err := io.ReadAll(os.Stdin)
	if err != nil {
		logger.Errorf("failed to read stdin: %v", err)
		return 1
	}

	var req simtypes.Request
	if err := json.Unmarshal(buf, &req); err != nil {
		os.Stdout.WriteString(simresponse.EmitLine(simresponse.Error("Invalid JSON: "+err.Error(), simresponse.ErrorOptions{})))
		return 0
	}

	resp := pipeline.Run(cfg, logger, &req)
	os.Stdout.WriteString(simresponse.EmitLine(resp))
	return 0
}
