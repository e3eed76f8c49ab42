// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

// Submission errors. ErrPromptRequired and ErrNothingToSend are validation
// outcomes raised before any network call; ErrIndexingTimeout ends a
// submission whose uploads never became queryable.
var (
	// ErrPromptRequired indicates files were attached without a prompt.
	// A prompt is mandatory when files are present.
	ErrPromptRequired = errors.New("a prompt is required when attaching files")

	// ErrNothingToSend indicates both the prompt and the file list were
	// empty. The UI treats this as a silent no-op.
	ErrNothingToSend = errors.New("nothing to send")

	// ErrIndexingTimeout indicates the uploaded files did not become
	// queryable within the poll budget. The message was not sent.
	ErrIndexingTimeout = errors.New("documents were uploaded but not indexed in time")
)
