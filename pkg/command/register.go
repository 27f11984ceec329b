package command

// RegisterAll builds a Registry carrying every command family this
// package implements, and an Executor wired to it. Handlers needing the
// executor itself (EXEC) are registered last, once exec exists.
func RegisterAll() (*Registry, *Executor) {
	reg := NewRegistry()
	exec := NewExecutor(reg)

	RegisterGenericCommands(reg)
	RegisterStringCommands(reg)
	RegisterListCommands(reg)
	RegisterHashCommands(reg)
	RegisterSetCommands(reg)
	RegisterZSetCommands(reg)
	RegisterStreamCommands(reg)
	RegisterHLLCommands(reg)
	RegisterBloomCommands(reg)
	RegisterJSONCommands(reg)
	RegisterPubSubCommands(reg)
	RegisterTxControlCommands(reg, exec)
	RegisterAdminCommands(reg)
	RegisterClusterCommands(reg)
	RegisterACLCommands(reg)
	RegisterScriptCommands(reg)

	return reg, exec
}
