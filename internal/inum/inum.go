// Package inum defines the inode number type shared by the name manager,
// overlay, and inode graph. It lives in its own package purely to break an
// import cycle between those three.
package inum

// Number is the 64-bit identifier the kernel and the engine use for a file
// or directory.
type Number uint64

// Root is the reserved inode number of the mount point itself.
const Root Number = 1

// Generation disambiguates a reused Number across wraparound: the pair
// (Number, Generation) uniquely identifies an inode across the lifetime of
// the process.
type Generation uint64
