// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with SCHOLAR_* overrides
//   - PromptStore: user-editable LLM prompt templates
//   - LoadEnv: .env loading for API keys
package file
