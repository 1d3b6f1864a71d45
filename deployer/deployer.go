// Package deployer runs the lifecycle operations (create, update, remove,
// rollback, validate) that lay a cluster manifest out on this machine.
package deployer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/maxpert/nodedeployer/delta"
	"github.com/maxpert/nodedeployer/store"
	"github.com/maxpert/nodedeployer/telemetry"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotDeployed     = errors.New("no deployment found in data root")
	ErrAlreadyDeployed = errors.New("data root already holds a deployment")
)

// Options configures a Deployer. Nil collaborators get logging defaults.
type Options struct {
	DataRoot           string
	NodeVersion        string
	ServiceName        string
	LockTimeout        time.Duration
	DynamicParameters  []string
	HistoryEnabled     bool
	HistoryMaxVersions int
	CompressionLevel   int

	FS       vfs.FS
	Host     HostService
	Firewall Firewall
	Machine  MachineIdentity
}

// Result summarizes a finished operation.
type Result struct {
	Operation Operation
	Nodes     []string
	Decision  *delta.Decision
	Version   uint64
}

// Deployer executes lifecycle operations against one data root.
type Deployer struct {
	opts     Options
	fs       vfs.FS
	layout   Layout
	analyzer *delta.Analyzer
}

// New creates a Deployer.
func New(opts Options) (*Deployer, error) {
	if opts.DataRoot == "" {
		return nil, fmt.Errorf("data root must be set")
	}
	if opts.FS == nil {
		opts.FS = vfs.Default
	}
	if opts.Host == nil {
		opts.Host = LoggingHost{}
	}
	if opts.Firewall == nil {
		opts.Firewall = LoggingFirewall{}
	}
	if opts.Machine == nil {
		opts.Machine = LocalMachine{}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	if opts.HistoryMaxVersions < 1 {
		opts.HistoryMaxVersions = 10
	}

	analyzer, err := delta.NewAnalyzer(nil, opts.DynamicParameters)
	if err != nil {
		return nil, err
	}

	return &Deployer{
		opts:     opts,
		fs:       opts.FS,
		layout:   NewLayout(opts.FS, opts.DataRoot),
		analyzer: analyzer,
	}, nil
}

// Layout returns the file layout of the data root.
func (d *Deployer) Layout() Layout {
	return d.layout
}

// Run dispatches p to the matching operation.
func (d *Deployer) Run(ctx context.Context, p Parameters) (result *Result, err error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		telemetry.ObserveOperation(string(p.Operation), start, err)
	}()

	switch p.Operation {
	case OpCreate:
		return d.Create(ctx, p)
	case OpUpdate:
		return d.Update(ctx, p)
	case OpRemove:
		return d.Remove(ctx, p)
	case OpRollback:
		return d.Rollback(ctx, p)
	default:
		return d.Validate(ctx, p)
	}
}

// Create deploys a cluster manifest into an empty data root.
func (d *Deployer) Create(ctx context.Context, p Parameters) (*Result, error) {
	unlock, err := d.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := fileExists(d.fs, d.layout.CurrentManifest())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyDeployed
	}

	src, err := d.loadSource(p.ClusterManifestPath, p.InfrastructureManifestPath)
	if err != nil {
		return nil, err
	}
	plan, err := BuildPlan(src, d.layout, d.opts.NodeVersion, LocalNodes(p.Nodes, d.opts.Machine))
	if err != nil {
		return nil, err
	}

	if err := d.apply(plan); err != nil {
		return nil, err
	}
	if err := d.openFirewall(ctx, plan); err != nil {
		return nil, err
	}
	if err := d.opts.Host.Install(ctx, d.opts.ServiceName); err != nil {
		return nil, fmt.Errorf("failed to install host service: %w", err)
	}
	if err := d.opts.Host.Start(ctx, d.opts.ServiceName); err != nil {
		return nil, fmt.Errorf("failed to start host service: %w", err)
	}

	version, err := d.record(src)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("cluster", src.Cluster.Name).
		Str("manifest_version", src.Cluster.Version).
		Int("nodes", len(plan.Nodes)).
		Int("seeds", plan.Votes.Len()).
		Msg("Deployment created")
	return &Result{Operation: OpCreate, Nodes: plan.nodeNames(), Version: version}, nil
}

// Update moves the current deployment to a new cluster manifest.
func (d *Deployer) Update(ctx context.Context, p Parameters) (*Result, error) {
	unlock, err := d.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := d.currentSource()
	if err != nil {
		return nil, err
	}
	target, err := d.loadSource(p.ClusterManifestPath, p.InfrastructureManifestPath)
	if err != nil {
		return nil, err
	}

	decision, plan, err := d.transition(ctx, current, target, p.Nodes)
	if err != nil {
		return nil, err
	}

	version, err := d.record(target)
	if err != nil {
		return nil, err
	}
	return &Result{Operation: OpUpdate, Nodes: plan.nodeNames(), Decision: decision, Version: version}, nil
}

// Rollback redeploys the manifest recorded before the current one.
func (d *Deployer) Rollback(ctx context.Context, p Parameters) (*Result, error) {
	unlock, err := d.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !d.opts.HistoryEnabled {
		return nil, fmt.Errorf("rollback requires deployment history")
	}

	history, err := d.openHistory()
	if err != nil {
		return nil, err
	}
	defer history.Close()

	currentSnap, err := history.Current()
	if err != nil {
		return nil, err
	}
	previousSnap, err := history.Previous()
	if err != nil {
		return nil, err
	}

	current, err := ParseSource(currentSnap.ClusterManifest, currentSnap.InfrastructureManifest)
	if err != nil {
		return nil, err
	}
	previous, err := ParseSource(previousSnap.ClusterManifest, previousSnap.InfrastructureManifest)
	if err != nil {
		return nil, err
	}

	decision, plan, err := d.transition(ctx, current, previous, p.Nodes)
	if err != nil {
		return nil, err
	}
	if err := history.SetCurrent(previousSnap.Version); err != nil {
		return nil, err
	}

	log.Info().
		Uint64("from_version", currentSnap.Version).
		Uint64("to_version", previousSnap.Version).
		Msg("Deployment rolled back")
	return &Result{Operation: OpRollback, Nodes: plan.nodeNames(), Decision: decision, Version: previousSnap.Version}, nil
}

// Remove stops the host service and deletes the deployment files.
func (d *Deployer) Remove(ctx context.Context, p Parameters) (*Result, error) {
	unlock, err := d.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := d.currentSource()
	if errors.Is(err, ErrNotDeployed) {
		log.Warn().Str("data_root", d.layout.Root()).Msg("Nothing to remove")
		return &Result{Operation: OpRemove}, nil
	}
	if err != nil {
		return nil, err
	}

	plan, err := BuildPlan(current, d.layout, d.opts.NodeVersion, LocalNodes(p.Nodes, d.opts.Machine))
	if err != nil {
		return nil, err
	}

	if err := d.opts.Host.Stop(ctx, d.opts.ServiceName); err != nil {
		return nil, fmt.Errorf("failed to stop host service: %w", err)
	}
	if err := d.opts.Host.Uninstall(ctx, d.opts.ServiceName); err != nil {
		return nil, fmt.Errorf("failed to uninstall host service: %w", err)
	}
	for _, np := range plan.Nodes {
		if err := d.opts.Firewall.Close(ctx, np.Node.Name); err != nil {
			return nil, fmt.Errorf("failed to close firewall for %s: %w", np.Node.Name, err)
		}
		if err := d.fs.RemoveAll(d.layout.NodeRoot(np.Node.Name)); err != nil {
			return nil, fmt.Errorf("failed to remove node folder %s: %w", np.Node.Name, err)
		}
	}
	for _, path := range d.layout.ClusterFiles() {
		if err := d.fs.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	if p.Purge {
		if err := store.Purge(d.fs, d.layout.History()); err != nil {
			return nil, err
		}
	}

	log.Info().Int("nodes", len(plan.Nodes)).Bool("purge", p.Purge).Msg("Deployment removed")
	return &Result{Operation: OpRemove, Nodes: plan.nodeNames()}, nil
}

// Validate checks a target manifest without writing anything. With a
// current manifest it also runs the update comparison.
func (d *Deployer) Validate(_ context.Context, p Parameters) (*Result, error) {
	target, err := d.loadSource(p.ClusterManifestPath, p.InfrastructureManifestPath)
	if err != nil {
		return nil, err
	}
	plan, err := BuildPlan(target, d.layout, d.opts.NodeVersion, AllNodes)
	if err != nil {
		return nil, err
	}

	result := &Result{Operation: OpValidate, Nodes: plan.nodeNames()}
	if p.CurrentManifestPath != "" {
		current, err := d.loadSource(p.CurrentManifestPath, "")
		if err != nil {
			return nil, err
		}
		decision, err := d.analyzer.Compare(current.Cluster, target.Cluster)
		if err != nil {
			return nil, err
		}
		result.Decision = &decision
	}

	log.Info().Str("cluster", target.Cluster.Name).Int("nodes", len(plan.Nodes)).Msg("Manifest is valid")
	return result, nil
}

// transition validates the move from current to target, writes the target
// files and restarts the host service when a static setting changed.
func (d *Deployer) transition(ctx context.Context, current, target *Source, nodes []string) (*delta.Decision, *Plan, error) {
	decision, err := d.analyzer.Compare(current.Cluster, target.Cluster)
	if err != nil {
		return nil, nil, err
	}
	plan, err := BuildPlan(target, d.layout, d.opts.NodeVersion, LocalNodes(nodes, d.opts.Machine))
	if err != nil {
		return nil, nil, err
	}

	if err := d.apply(plan); err != nil {
		return nil, nil, err
	}
	var changes bytes.Buffer
	if err := delta.WriteChanges(&changes, decision.Changes); err != nil {
		return nil, nil, err
	}
	if err := writeFileAtomic(d.fs, d.layout.ChangedSettings(), changes.Bytes()); err != nil {
		return nil, nil, err
	}
	if err := d.openFirewall(ctx, plan); err != nil {
		return nil, nil, err
	}

	telemetry.ChangedSettings.Set(float64(len(decision.Changes)))
	if decision.Outcome == delta.RestartRequired {
		if err := d.opts.Host.Restart(ctx, d.opts.ServiceName); err != nil {
			return nil, nil, fmt.Errorf("failed to restart host service: %w", err)
		}
	}

	log.Info().
		Str("cluster", target.Cluster.Name).
		Str("from_version", current.Cluster.Version).
		Str("to_version", target.Cluster.Version).
		Str("outcome", decision.Outcome.String()).
		Int("changes", len(decision.Changes)).
		Msg("Deployment updated")
	return &decision, plan, nil
}

// apply writes a fully built plan. Every file is replaced atomically.
func (d *Deployer) apply(plan *Plan) error {
	for _, np := range plan.Nodes {
		if err := d.fs.MkdirAll(d.layout.NodeWorkDir(np.Node.Name), 0755); err != nil {
			return fmt.Errorf("failed to create work dir of %s: %w", np.Node.Name, err)
		}
		if err := writeFileAtomic(d.fs, d.layout.NodeSettings(np.Node.Name), np.Settings); err != nil {
			return err
		}
	}

	files := []struct {
		path string
		data []byte
	}{
		{d.layout.Votes(), plan.VotesFile},
		{d.layout.ClientConnections(), plan.ClientConnectionsFile},
		{d.layout.SeedInfo(), plan.ClusterConnectionsFile},
		{d.layout.CurrentManifest(), plan.Source.ClusterXML},
	}
	for _, f := range files {
		if err := writeFileAtomic(d.fs, f.path, f.data); err != nil {
			return err
		}
	}

	if len(plan.Source.InfraXML) > 0 {
		if err := writeFileAtomic(d.fs, d.layout.CurrentInfrastructure(), plan.Source.InfraXML); err != nil {
			return err
		}
	} else if err := d.fs.RemoveAll(d.layout.CurrentInfrastructure()); err != nil {
		return err
	}

	telemetry.ResolvedNodes.With(plan.Topology.Kind.String()).Set(float64(len(plan.Topology.Nodes)))
	telemetry.SeedNodes.Set(float64(plan.Votes.Len()))
	return nil
}

func (d *Deployer) openFirewall(ctx context.Context, plan *Plan) error {
	for _, np := range plan.Nodes {
		if err := d.opts.Firewall.Open(ctx, np.Node.Name, np.Ports); err != nil {
			return fmt.Errorf("failed to open firewall for %s: %w", np.Node.Name, err)
		}
	}
	return nil
}

func (d *Deployer) lock(ctx context.Context) (func(), error) {
	closer, err := AcquireLock(ctx, d.fs, d.layout.Lock(), d.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release data root lock")
		}
	}, nil
}

func (d *Deployer) loadSource(clusterPath, infraPath string) (*Source, error) {
	clusterXML, err := readFile(d.fs, clusterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster manifest: %w", err)
	}
	var infraXML []byte
	if infraPath != "" {
		if infraXML, err = readFile(d.fs, infraPath); err != nil {
			return nil, fmt.Errorf("failed to read infrastructure manifest: %w", err)
		}
	}
	return ParseSource(clusterXML, infraXML)
}

// currentSource returns the deployed manifests. The current file in the
// data root marks a deployment; the history store is preferred for content.
func (d *Deployer) currentSource() (*Source, error) {
	exists, err := fileExists(d.fs, d.layout.CurrentManifest())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotDeployed
	}

	if d.opts.HistoryEnabled {
		history, err := d.openHistory()
		if err != nil {
			return nil, err
		}
		snap, err := history.Current()
		history.Close()
		if err == nil {
			return ParseSource(snap.ClusterManifest, snap.InfrastructureManifest)
		}
		if !errors.Is(err, store.ErrNoHistory) {
			return nil, err
		}
	}

	clusterXML, err := readFile(d.fs, d.layout.CurrentManifest())
	if err != nil {
		return nil, err
	}
	var infraXML []byte
	if ok, _ := fileExists(d.fs, d.layout.CurrentInfrastructure()); ok {
		if infraXML, err = readFile(d.fs, d.layout.CurrentInfrastructure()); err != nil {
			return nil, err
		}
	}
	return ParseSource(clusterXML, infraXML)
}

func (d *Deployer) openHistory() (*store.History, error) {
	return store.OpenHistory(d.layout.History(), store.Options{
		CompressionLevel: d.opts.CompressionLevel,
		FS:               d.fs,
	})
}

func (d *Deployer) record(src *Source) (uint64, error) {
	if !d.opts.HistoryEnabled {
		return 0, nil
	}
	history, err := d.openHistory()
	if err != nil {
		return 0, err
	}
	defer history.Close()

	version, recorded, err := history.Record(store.Snapshot{
		ManifestName:           src.Cluster.Name,
		ManifestVersion:        src.Cluster.Version,
		ClusterManifest:        src.ClusterXML,
		InfrastructureManifest: src.InfraXML,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record deployment history: %w", err)
	}
	if recorded {
		if _, err := history.Prune(d.opts.HistoryMaxVersions); err != nil {
			log.Warn().Err(err).Msg("Failed to prune deployment history")
		}
	}
	if snapshots, err := history.List(); err == nil {
		telemetry.HistoryVersions.Set(float64(len(snapshots)))
	}
	return version, nil
}

func (p *Plan) nodeNames() []string {
	names := make([]string, len(p.Nodes))
	for i, np := range p.Nodes {
		names[i] = np.Node.Name
	}
	return names
}

// CurrentSource returns the deployed manifests, or ErrNotDeployed.
func (d *Deployer) CurrentSource() (*Source, error) {
	return d.currentSource()
}

// InspectPlan builds the plan of every node of src without writing it.
func (d *Deployer) InspectPlan(src *Source) (*Plan, error) {
	return BuildPlan(src, d.layout, d.opts.NodeVersion, AllNodes)
}

// HistorySnapshots lists the recorded snapshots, oldest first, and the
// current version. Both are empty when history is disabled or unused.
func (d *Deployer) HistorySnapshots() ([]store.Snapshot, uint64, error) {
	if !d.opts.HistoryEnabled {
		return nil, 0, nil
	}
	history, err := d.openHistory()
	if err != nil {
		return nil, 0, err
	}
	defer history.Close()

	snapshots, err := history.List()
	if err != nil {
		return nil, 0, err
	}
	current, err := history.Current()
	if errors.Is(err, store.ErrNoHistory) {
		return snapshots, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return snapshots, current.Version, nil
}
