// Package catalog stores connection profiles and their secrets.
//
// Profiles live in the sqlite database (see internal/database); passwords are
// kept apart from them in the settings table, fernet-encrypted and keyed by
// name@host, so exporting the catalog never leaks a secret.
//
// The package also reads and writes the ssh_config block format used by
// earlier releases of the tool, with profile metadata carried in comments:
//
//	Host web
//	  HostName 10.0.0.5
//	  User deploy
//	  Port 2222
//	  # Group: prod
//	  # Favorite: true
//	  # LastUsed: 2024-05-01T10:00:00Z
package catalog
