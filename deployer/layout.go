package deployer

import "github.com/cockroachdb/pebble/vfs"

// Layout names the files a deployment writes under the data root.
type Layout struct {
	fs   vfs.FS
	root string
}

func NewLayout(fs vfs.FS, root string) Layout {
	return Layout{fs: fs, root: root}
}

func (l Layout) Root() string { return l.root }

func (l Layout) CurrentManifest() string {
	return l.fs.PathJoin(l.root, "ClusterManifest.current.xml")
}

func (l Layout) CurrentInfrastructure() string {
	return l.fs.PathJoin(l.root, "InfrastructureManifest.current.xml")
}

func (l Layout) Votes() string {
	return l.fs.PathJoin(l.root, "Votes.txt")
}

func (l Layout) ClientConnections() string {
	return l.fs.PathJoin(l.root, "ClientConnections.txt")
}

func (l Layout) SeedInfo() string {
	return l.fs.PathJoin(l.root, "SeedInfo.txt")
}

func (l Layout) ChangedSettings() string {
	return l.fs.PathJoin(l.root, "ChangedSettings.txt")
}

func (l Layout) NodeRoot(node string) string {
	return l.fs.PathJoin(l.root, node)
}

func (l Layout) NodeSettings(node string) string {
	return l.fs.PathJoin(l.root, node, "Fabric", "Settings.xml")
}

func (l Layout) NodeWorkDir(node string) string {
	return l.fs.PathJoin(l.root, node, "Fabric", "work")
}

func (l Layout) Lock() string {
	return l.fs.PathJoin(l.root, ".deployer", "LOCK")
}

func (l Layout) History() string {
	return l.fs.PathJoin(l.root, ".deployer", "history")
}

// ClusterFiles lists the cluster-wide files removed by Remove.
func (l Layout) ClusterFiles() []string {
	return []string{
		l.CurrentManifest(),
		l.CurrentInfrastructure(),
		l.Votes(),
		l.ClientConnections(),
		l.SeedInfo(),
		l.ChangedSettings(),
	}
}
