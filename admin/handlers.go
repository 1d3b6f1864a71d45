package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/nodedeployer/deployer"
	"github.com/maxpert/nodedeployer/manifest"
	"github.com/maxpert/nodedeployer/store"
	"github.com/maxpert/nodedeployer/telemetry"
	"github.com/rs/zerolog/log"
)

// Inspector is the read side of a deployer.
type Inspector interface {
	CurrentSource() (*deployer.Source, error)
	InspectPlan(src *deployer.Source) (*deployer.Plan, error)
	HistorySnapshots() ([]store.Snapshot, uint64, error)
}

// AdminHandlers serves read-only views of the deployment in the data root
type AdminHandlers struct {
	inspector Inspector
	plans     *lru.Cache[uint64, *deployer.Plan]
}

// NewAdminHandlers creates handlers caching up to cacheSize built plans,
// keyed by the fingerprint of the manifests they were built from.
func NewAdminHandlers(inspector Inspector, cacheSize int) (*AdminHandlers, error) {
	plans, err := lru.New[uint64, *deployer.Plan](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings cache: %w", err)
	}
	return &AdminHandlers{inspector: inspector, plans: plans}, nil
}

type nodeView struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	NodeType      string `json:"node_type"`
	Role          string `json:"role,omitempty"`
	FaultDomain   string `json:"fault_domain,omitempty"`
	UpgradeDomain string `json:"upgrade_domain,omitempty"`
	IsSeed        bool   `json:"is_seed"`
}

type topologyView struct {
	Cluster string     `json:"cluster"`
	Version string     `json:"version"`
	Kind    string     `json:"kind"`
	Nodes   []nodeView `json:"nodes"`
}

type voteView struct {
	NodeName          string `json:"node_name"`
	Token             string `json:"token"`
	ClientAddress     string `json:"client_address"`
	ClusterConnection string `json:"cluster_connection"`
}

type settingsView struct {
	Node        string             `json:"node"`
	Fingerprint string             `json:"fingerprint"`
	Sections    []manifest.Section `json:"sections"`
}

type snapshotView struct {
	Version         uint64 `json:"version"`
	ManifestName    string `json:"manifest_name"`
	ManifestVersion string `json:"manifest_version"`
	Fingerprint     string `json:"fingerprint"`
	AppliedAt       string `json:"applied_at"`
	Current         bool   `json:"current"`
}

func (h *AdminHandlers) handleTopology(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.currentPlan(w)
	if !ok {
		return
	}

	view := topologyView{
		Cluster: plan.Source.Cluster.Name,
		Version: plan.Source.Cluster.Version,
		Kind:    plan.Topology.Kind.String(),
		Nodes:   make([]nodeView, 0, len(plan.Topology.Nodes)),
	}
	for _, n := range plan.Topology.Nodes {
		view.Nodes = append(view.Nodes, nodeView{
			Name:          n.Name,
			Address:       n.Address,
			NodeType:      n.NodeType,
			Role:          n.Role,
			FaultDomain:   n.FaultDomain,
			UpgradeDomain: n.UpgradeDomain,
			IsSeed:        n.IsSeed,
		})
	}
	writeJSONResponse(w, view)
}

func (h *AdminHandlers) handleVotes(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.currentPlan(w)
	if !ok {
		return
	}

	votes := make([]voteView, 0, plan.Votes.Len())
	for _, v := range plan.Votes.Votes {
		votes = append(votes, voteView{
			NodeName:          v.NodeName,
			Token:             v.Token,
			ClientAddress:     v.ClientAddress,
			ClusterConnection: v.ClusterConnection,
		})
	}
	writeJSONResponse(w, votes)
}

func (h *AdminHandlers) handleNodeSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeErrorResponse(w, http.StatusBadRequest, "node name is required")
		return
	}

	plan, ok := h.currentPlan(w)
	if !ok {
		return
	}
	for _, np := range plan.Nodes {
		if np.Node.Name == name {
			writeJSONResponse(w, settingsView{
				Node:        name,
				Fingerprint: fmt.Sprintf("%016x", np.Fingerprint),
				Sections:    np.Sections,
			})
			return
		}
	}
	writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("node %s is not part of the topology", name))
}

func (h *AdminHandlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	snapshots, current, err := h.inspector.HistorySnapshots()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list deployment history")
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]snapshotView, 0, len(snapshots))
	for _, s := range snapshots {
		views = append(views, snapshotView{
			Version:         s.Version,
			ManifestName:    s.ManifestName,
			ManifestVersion: s.ManifestVersion,
			Fingerprint:     fmt.Sprintf("%016x", s.Fingerprint),
			AppliedAt:       formatTimestamp(s.AppliedAt),
			Current:         s.Version == current,
		})
	}
	writeJSONResponse(w, views)
}

func (h *AdminHandlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	handler := telemetry.GetMetricsHandler()
	if handler == nil {
		writeErrorResponse(w, http.StatusNotFound, "metrics are disabled")
		return
	}
	handler.ServeHTTP(w, r)
}

// currentPlan returns the plan of the deployed manifests, building it at
// most once per manifest fingerprint. On failure the response is written.
func (h *AdminHandlers) currentPlan(w http.ResponseWriter) (*deployer.Plan, bool) {
	src, err := h.inspector.CurrentSource()
	if errors.Is(err, deployer.ErrNotDeployed) {
		writeErrorResponse(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load deployed manifests")
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	key := store.FingerprintOf(src.ClusterXML, src.InfraXML)
	if plan, ok := h.plans.Get(key); ok {
		return plan, true
	}

	plan, err := h.inspector.InspectPlan(src)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build deployment plan")
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	h.plans.Add(key, plan)
	return plan, true
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// formatTimestamp converts unix nanoseconds to RFC 3339
func formatTimestamp(ns int64) string {
	if ns == 0 {
		return ""
	}
	return time.Unix(0, ns).UTC().Format(time.RFC3339Nano)
}
