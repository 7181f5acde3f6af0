// Package backend produces candidate evidence by either fabricating a
// deterministic mock run or shelling out to a configured simulation
// backend, following the teacher's internal/llm.Client pattern of a small
// interface with a swappable real implementation behind it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/wangzizhe/gateforge/internal/config"
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Adapter produces one Evidence record for a proposal's model script.
type Adapter interface {
	Run(ctx context.Context, backend, modelScript string, timeout time.Duration) (gftypes.Evidence, error)
}

// NewAdapter selects the backend adapter by name. Unknown names fall back
// to the mock adapter so local/offline development always has a working
// path, mirroring the teacher's FallbackClient philosophy.
func NewAdapter(name string) Adapter {
	switch name {
	case "openmodelica":
		return &OpenModelicaAdapter{
			Image:  config.OpenModelicaImage(),
			Script: config.OpenModelicaScript(),
		}
	default:
		return &MockAdapter{}
	}
}

// MockAdapter fabricates a deterministic success evidence record without
// spawning any process. It exists for local development and for the test
// suite's S1/S2/S4 scenarios.
type MockAdapter struct{}

func (m *MockAdapter) Run(ctx context.Context, backendName, modelScript string, timeout time.Duration) (gftypes.Evidence, error) {
	ok := true
	return gftypes.Evidence{
		SchemaVersion: "1.0",
		RunID:         uuid.NewString(),
		Backend:       backendName,
		ModelScript:   modelScript,
		Status:        gftypes.StatusSuccess,
		FailureType:   gftypes.FailureNone,
		Gate:          gftypes.GatePass,
		CheckOK:       true,
		SimulateOK:    &ok,
		Metrics: gftypes.Metrics{
			RuntimeSeconds: 1.0,
			Events:         10,
		},
		ExitCode: 0,
		Toolchain: gftypes.Toolchain{
			BackendVersion: "mock-1.0",
		},
	}, nil
}

// OpenModelicaAdapter shells out to a configured entrypoint script, passing
// the configured image name to it as GATEFORGE_OM_IMAGE, and parses its JSON
// stdout as an Evidence record. Without a script it reports
// backend_unavailable; it never launches the image itself. The workspace it runs in is scoped to a temp
// directory allocated for this run alone and released on every exit path.
type OpenModelicaAdapter struct {
	Image  string
	Script string
}

func (o *OpenModelicaAdapter) Run(ctx context.Context, backendName, modelScript string, timeout time.Duration) (gftypes.Evidence, error) {
	if o.Script == "" {
		return gftypes.Evidence{}, fmt.Errorf("backend_unavailable: GATEFORGE_OM_SCRIPT not configured")
	}

	workdir, err := os.MkdirTemp("", "gateforge-om-*")
	if err != nil {
		return gftypes.Evidence{}, fmt.Errorf("allocate backend workspace: %w", err)
	}
	defer os.RemoveAll(workdir)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.Script, modelScript)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), "GATEFORGE_OM_IMAGE="+o.Image)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return gftypes.Evidence{
			SchemaVersion: "1.0",
			RunID:         uuid.NewString(),
			Backend:       backendName,
			ModelScript:   modelScript,
			Status:        gftypes.StatusFailure,
			FailureType:   gftypes.FailureTimeout,
			Gate:          gftypes.GateFail,
			ExitCode:      -1,
			Toolchain:     gftypes.Toolchain{BackendVersion: "openmodelica"},
			Artifacts:     gftypes.Artifacts{LogExcerpt: tail(stdout.String())},
		}, nil
	}

	if runErr != nil {
		return gftypes.Evidence{}, fmt.Errorf("docker_error: backend invocation failed: %w", runErr)
	}

	var ev gftypes.Evidence
	if err := json.Unmarshal(stdout.Bytes(), &ev); err != nil {
		return gftypes.Evidence{}, fmt.Errorf("backend produced unparseable evidence: %w", err)
	}
	return ev, nil
}

func tail(s string) string {
	const maxLen = 2000
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}
