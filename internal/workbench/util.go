package workbench

import "strings"

func splitBranches(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func joinBranches(names []string) string {
	return strings.Join(names, ",")
}
