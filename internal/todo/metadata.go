package todo

import (
	"github.com/grixate/fnbridge/internal/metadata"
)

const (
	componentItem           = "TodoItem"
	componentMutationResult = "TodoMutationResult"
	componentStats          = "TodoStats"
)

func components() metadata.ComponentsMetadata {
	status := metadata.Primitive(metadata.KindString, "Current status. Always one of PENDING or COMPLETED.")
	status.EnumValues = []any{string(StatusPending), string(StatusCompleted)}

	item := metadata.ObjectOf(map[string]*metadata.DataTypeMetadata{
		"id":     metadata.Primitive(metadata.KindString, "Unique identifier of the todo as a numeric string."),
		"task":   metadata.Primitive(metadata.KindString, "The task description text."),
		"status": status,
	}, "id", "task", "status")
	item.Description = "A single todo item."

	result := metadata.ObjectOf(map[string]*metadata.DataTypeMetadata{
		"success": metadata.Primitive(metadata.KindBoolean, "True if the operation completed successfully."),
		"message": metadata.Primitive(metadata.KindString, "Human-readable outcome, suitable for display."),
	}, "success", "message")
	result.Description = "Outcome of a create, update or delete."

	stats := metadata.ObjectOf(map[string]*metadata.DataTypeMetadata{
		"total":     metadata.Primitive(metadata.KindInt, "Total number of todos."),
		"completed": metadata.Primitive(metadata.KindInt, "Number of completed todos."),
		"pending":   metadata.Primitive(metadata.KindInt, "Number of pending todos."),
	}, "total", "completed", "pending")
	stats.Description = "Aggregated counts over the todo list."

	return metadata.ComponentsMetadata{DataTypes: map[string]*metadata.DataTypeMetadata{
		componentItem:           item,
		componentMutationResult: result,
		componentStats:          stats,
	}}
}

func todoIDParameter(action string) metadata.ParameterMetadata {
	return metadata.ParameterMetadata{
		Name:        "todoId",
		DataType:    metadata.Primitive(metadata.KindString, ""),
		Required:    true,
		Description: "The id of the todo to " + action + ", the numeric string from a todo item's id.",
	}
}

// Metadata is the snapshot this package publishes to discovery.
func Metadata() metadata.PackageMetadata {
	shared := components()
	itemList := metadata.ArrayOf(metadata.Ref(componentItem), "")
	fn := func(id, description string, params []metadata.ParameterMetadata, response *metadata.DataTypeMetadata) metadata.FunctionMetadata {
		return metadata.FunctionMetadata{
			ID:               id,
			Description:      description,
			EnabledByDefault: true,
			Parameters:       params,
			Response:         metadata.ResponseMetadata{ValueType: response},
			Components:       shared,
		}
	}
	return metadata.PackageMetadata{
		PackageName: PackageName,
		Components:  shared,
		Functions: []metadata.FunctionMetadata{
			fn(FunctionAddTodo,
				"Creates and saves a new todo item. Use when the user wants to add or remember a task.",
				[]metadata.ParameterMetadata{{
					Name:        "task",
					DataType:    metadata.Primitive(metadata.KindString, ""),
					Required:    true,
					Description: "The task description to save. Must not be blank.",
				}},
				metadata.Ref(componentMutationResult)),
			fn(FunctionGetAllTodos,
				"Returns every todo item, both pending and completed.",
				nil, itemList),
			fn(FunctionGetPendingTodos,
				"Returns the todo items that are not completed yet.",
				nil, itemList),
			fn(FunctionCompleteTodo,
				"Marks the todo with the given id as completed.",
				[]metadata.ParameterMetadata{todoIDParameter("complete")},
				metadata.Ref(componentMutationResult)),
			fn(FunctionDeleteTodo,
				"Permanently removes the todo with the given id.",
				[]metadata.ParameterMetadata{todoIDParameter("delete")},
				metadata.Ref(componentMutationResult)),
			fn(FunctionGetTodoStats,
				"Returns the total, completed and pending counts of the todo list.",
				nil, metadata.Ref(componentStats)),
		},
	}
}
