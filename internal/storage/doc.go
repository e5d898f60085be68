// Package storage keeps generated campaign assets on the local filesystem and
// hands out stable public ids and URLs for them.
//
// Public ids look like "images/3f0c…" (folder plus uuid, no extension). The
// daemon serves the assets directory under /assets/, so an asset's URL is the
// configured public base URL joined with its relative path.
package storage
