// Package providers registers the backend wire formats with the llm package.
//
// Import it for side effects:
//
//	import _ "github.com/c360studio/uiaudit/llm/providers"
//
// Three providers are available:
//
//   - huggingface: hosted inference endpoint, {inputs, parameters} in,
//     [{generated_text}] out, bearer token from HF_API_TOKEN
//   - ollama: local model server /api/generate, {model, prompt, stream:false}
//     in, {response} out, no auth
//   - openai: chat completions, {model, messages, max_tokens} in,
//     choices[0].message.content out, bearer token from OPENAI_API_KEY
package providers
