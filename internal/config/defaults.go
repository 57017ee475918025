package config

// DefaultConfigYAML is the file written by `threadlens init`.
const DefaultConfigYAML = `# threadlens configuration
#
# Every key can be overridden with a THREADLENS_* environment variable,
# e.g. THREADLENS_RENDER_FORMAT=dot, or with the matching command flag.

log:
  # debug, info, warn, error
  level: info
  # auto, text, json
  format: auto

input:
  # auto detects JSON ({ or [) and falls back to YAML
  format: auto
  # Largest dump accepted, in bytes (0 disables the limit)
  max_bytes: 67108864

render:
  # mermaid, dot, json (timeline also accepts table)
  format: mermaid
  # Flowchart direction: LR, RL, TB, BT
  direction: LR
  # Omit threads that hold and wait on nothing
  hide_idle: false

report:
  # markdown or html
  format: markdown
  # Contended locks listed in the report summary
  top_n: 10
  # Stack frames shown per deadlocked thread
  stack_depth: 5

batch:
  # Dumps analyzed in parallel by "threadlens batch"
  concurrency: 4
`
