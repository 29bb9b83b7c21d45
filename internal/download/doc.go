// Package download resolves remote video URLs to local files via yt-dlp.
package download
