// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package media manages the uploads directory: browsing, folders, uploads,
renames, deletes and media categories.

Every path handed to the service is relative to the uploads root and is
resolved with resolve, which rejects anything that would escape the root.
Top-level system folders (themes, plugins, assets, fonts, dl-manager,
form-uploads) cannot be deleted or renamed.

Per-file metadata (uploader and category) and the category list live in
.media_meta.json inside the root. Upload settings are stored in the
media_settings option.

Uploads are written to a temporary file first, sniffed with mimetype and
moved into place only when the detected type agrees with the extension
group the settings allow.
*/
package media
