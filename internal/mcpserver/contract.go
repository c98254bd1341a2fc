package mcpserver

// NumberFormatContract describes the document number format that LLM
// consumers should follow when requesting records.
const NumberFormatContract = `# Othala Document Number Contract

Every document in the control center is identified by a number of the form:

` + "```" + `
<category letter><digits>[-v<version>]
` + "```" + `

## Category letters

| Letter | Document type            |
|--------|--------------------------|
| A      | Acquisitions             |
| C      | Contractual or procurement |
| D      | Drawings                 |
| E      | Engineering documents    |
| F      | Forms and questionnaires |
| G      | Presentations            |
| L      | Letters and memos        |
| M      | Management or policy     |
| P      | Publications             |
| Q      | Quality assurance        |
| R      | Operations reports       |
| S      | Serial numbers           |
| T      | Technical notes           |
| X      | Safety incident reports  |

## Rules

1. The digit string keeps its leading zeros: ` + "`" + `T0123456` + "`" + `, not ` + "`" + `T123456` + "`" + `.
2. ` + "`" + `-v2` + "`" + ` names version 2 of the document. Version zero is written ` + "`" + `-x0` + "`" + `.
3. A number without a version suffix means "the latest version".
4. A leading ` + "`" + `LIGO-` + "`" + ` prefix is accepted and stripped: ` + "`" + `LIGO-T0123456-v2` + "`" + `
   and ` + "`" + `T0123456-v2` + "`" + ` name the same revision.

## Examples

- ` + "`" + `T0123456` + "`" + ` - latest version of technical note T0123456
- ` + "`" + `T0123456-v2` + "`" + ` - version 2 exactly
- ` + "`" + `G1800123-x0` + "`" + ` - version 0 of presentation G1800123
`
