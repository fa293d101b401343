// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package refdata holds the data files packaged into the binary: the default
// configuration document, the reference documents addressable by short name,
// and the default cell barcode whitelist.
package refdata
