package instance

import (
	"bytes"
	"encoding/base64"
	"os"

	"github.com/lodestone-mc/lodestone/pkg/nbt"
	"github.com/rs/zerolog"
)

// ServerSummary describes one entry of the instance's server list.
type ServerSummary struct {
	Name string
	Addr string
	// Icon is the decoded favicon if the entry carries one.
	Icon []byte
}

// StartLoadServers begins a background parse of the server list if one
// is needed and none is in flight.
func (inst *Instance) StartLoadServers(wake chan<- struct{}) StartLoadResult {
	if inst.serversLoading != nil {
		return LoadNone
	}

	initial := !inst.serversLoaded
	if !initial && !inst.DirtyServers {
		return LoadNone
	}

	inst.serversState = StateLoading
	inst.DirtyServers = false

	pending := &pendingLoad[[]ServerSummary]{}
	inst.serversLoading = pending
	path := inst.ServersPath
	log := inst.log
	go func() {
		pending.complete(loadServerSummaries(path, log), wake)
	}()

	if initial {
		return LoadInitial
	}
	return LoadReload
}

// FinishLoadServers polls the in-flight server parse. If it has
// completed, the snapshot is published and returned.
func (inst *Instance) FinishLoadServers() ([]ServerSummary, bool) {
	pending := inst.serversLoading
	if pending == nil || !pending.finished.Load() {
		return nil, false
	}
	inst.serversLoading = nil
	inst.serversState = finished(inst.serversState)
	inst.servers = pending.result
	inst.serversLoaded = true
	return pending.result, true
}

// loadServerSummaries parses the binary server list. A missing file is
// an empty list; a malformed one is logged and treated the same, since
// the game rewrites it constantly.
func loadServerSummaries(path string, log zerolog.Logger) []ServerSummary {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Cannot read server list")
		}
		return nil
	}

	_, root, err := nbt.DecodeNamed(bytes.NewReader(raw))
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Cannot parse server list")
		return nil
	}

	servers, ok := root.List("servers", nbt.TagCompound)
	if !ok {
		log.Warn().Str("path", path).Msg("Server list has no servers record")
		return nil
	}

	summaries := make([]ServerSummary, 0, len(servers.Items))
	for _, item := range servers.Items {
		server, ok := item.(nbt.Compound)
		if !ok {
			continue
		}

		if hidden, ok := server.Byte("hidden"); ok && hidden != 0 {
			continue
		}

		addr, ok := server.String("ip")
		if !ok {
			continue
		}

		name, ok := server.String("name")
		if !ok {
			name = "<unnamed>"
		}

		var icon []byte
		if encoded, ok := server.String("icon"); ok {
			if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil {
				icon = decoded
			}
		}

		summaries = append(summaries, ServerSummary{Name: name, Addr: addr, Icon: icon})
	}

	return summaries
}
