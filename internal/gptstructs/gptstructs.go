// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package gptstructs provides encoded definitions for GPT on-disk structures.
//
// All on-disk scalars are little-endian; the accessor types below never expose
// native-endian byte layouts.
package gptstructs

// NumEntries is the number of entries in the GPT.
const NumEntries = 128
