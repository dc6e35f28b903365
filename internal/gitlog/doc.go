// Package gitlog reads commit history from a local git clone.
//
// [Repo] talks to git through a long-running `git cat-file --batch` process and
// resolves branch and tag names with `git rev-parse`. The repository is never
// written to.
//
// [Walker] traverses the commit graph backward from a set of tips in bounded
// chunks. Its frontier, [Walker.Pending], can be persisted and used to start a
// new walker that continues where the previous one stopped. Parents missing from
// a shallow clone are reported as history boundaries instead of failing the walk.
package gitlog
