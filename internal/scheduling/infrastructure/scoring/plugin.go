// Package scoring lets an external binary override the built-in
// DifficultyScorer, via hashicorp/go-plugin's classic net/rpc transport
// (not the gRPC transport the teacher's engine subsystem uses for
// third-party automations — see DESIGN.md for why this component uses the
// lighter transport instead).
package scoring

import (
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/shiftsat/engine/internal/scheduling/application/commands"
)

// Handshake is the magic-cookie handshake both host and plugin binary must
// agree on before the host will talk to the child process.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SHIFTSAT_SCORING_PLUGIN",
	MagicCookieValue: "difficulty-scorer",
}

// Scorer is the interface an external difficulty-scoring plugin implements.
type Scorer interface {
	Score(dayOfWeek string, hour int) (float64, error)
}

// ScoreArgs is the net/rpc argument envelope for Scorer.Score.
type ScoreArgs struct {
	DayOfWeek string
	Hour      int
}

// ScorerPlugin adapts a Scorer implementation to go-plugin's net/rpc Plugin
// interface. The host only ever constructs one with Impl left nil (it's
// only a client); a plugin binary sets Impl to its own Scorer.
type ScorerPlugin struct {
	Impl Scorer
}

// Server returns the RPC server half, used by the plugin binary.
func (p *ScorerPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &scorerRPCServer{impl: p.Impl}, nil
}

// Client returns the RPC client half, used by the host process.
func (p *ScorerPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &scorerRPCClient{client: c}, nil
}

type scorerRPCClient struct {
	client *rpc.Client
}

func (c *scorerRPCClient) Score(dayOfWeek string, hour int) (float64, error) {
	var resp float64
	err := c.client.Call("Plugin.Score", ScoreArgs{DayOfWeek: dayOfWeek, Hour: hour}, &resp)
	return resp, err
}

type scorerRPCServer struct {
	impl Scorer
}

func (s *scorerRPCServer) Score(args ScoreArgs, resp *float64) error {
	v, err := s.impl.Score(args.DayOfWeek, args.Hour)
	*resp = v
	return err
}

// Host launches the external scoring plugin binary at path and returns a
// client bound to it. Callers must call Close when done to terminate the
// child process.
type Host struct {
	client *plugin.Client
	scorer commands.DifficultyScorerPlugin
}

// Launch starts the plugin binary at binaryPath and performs the handshake.
func Launch(binaryPath string) (*Host, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "scoring-plugin",
		Output: hclog.DefaultOutput,
		Level:  hclog.Warn,
	})

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"scorer": &ScorerPlugin{},
		},
		Cmd:    exec.Command(binaryPath), // #nosec G204 -- operator-configured plugin path
		Logger: logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("connect to scoring plugin: %w", err)
	}

	raw, err := rpcClient.Dispense("scorer")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense scorer plugin: %w", err)
	}

	scorer, ok := raw.(commands.DifficultyScorerPlugin)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("scoring plugin does not implement Scorer")
	}

	return &Host{client: client, scorer: scorer}, nil
}

// Scorer returns the dispensed scorer client.
func (h *Host) Scorer() commands.DifficultyScorerPlugin {
	return h.scorer
}

// Close terminates the plugin subprocess.
func (h *Host) Close() {
	h.client.Kill()
}

// Serve starts a scoring plugin server. Scoring plugin binaries should call
// this from their main function.
func Serve(impl Scorer) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"scorer": &ScorerPlugin{Impl: impl},
		},
	})
}
