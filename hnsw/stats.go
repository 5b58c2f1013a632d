package hnsw

import "fmt"

// LevelStats summarizes one level of a graph.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections float64
	MaxConnections int
}

// Stats summarizes a graph.
type Stats struct {
	Size      int
	NumLevels int
	EntryNode int
	MaxConn   int
	Levels    []LevelStats
}

// GraphStats computes per-level node and degree statistics. It uses the
// graph cursor and requires a complete graph.
func GraphStats(g Graph) Stats {
	st := Stats{
		Size:      g.Size(),
		NumLevels: g.NumLevels(),
		EntryNode: g.EntryNode(),
		MaxConn:   g.MaxConn(),
		Levels:    make([]LevelStats, g.NumLevels()),
	}
	if g.Size() == 0 {
		return st
	}
	for level := range st.Levels {
		ls := LevelStats{Level: level}
		for _, node := range g.NodesOnLevel(level) {
			g.Seek(level, node)
			n := g.NeighborCount()
			ls.Nodes++
			ls.Connections += n
			ls.MaxConnections = max(ls.MaxConnections, n)
		}
		if ls.Nodes > 0 {
			ls.AvgConnections = float64(ls.Connections) / float64(ls.Nodes)
		}
		st.Levels[level] = ls
	}
	return st
}

func (s Stats) String() string {
	return fmt.Sprintf("size=%d levels=%d entry=%d maxConn=%d", s.Size, s.NumLevels, s.EntryNode, s.MaxConn)
}
