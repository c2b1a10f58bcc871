// Package filesystem finds converted papers on local disk.
//
// Scanner walks an inbox directory and returns the files a loader can read,
// filtered by doublestar include and exclude patterns. Watcher follows the
// same directory with fsnotify and reports files once they settle.
package filesystem
