package vm

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"tinymach/asm"
)

// debugModel is the bubbletea model for single-stepping a run: space or j
// advances one instruction, q quits.
type debugModel struct {
	cpu      *cpu
	maxTicks int
	prevPC   int32
	tick     int
	done     TerminationReason
	err      error
}

func (m debugModel) Init() tea.Cmd {
	return nil
}

func (m debugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case " ", "j":
			if m.done != "" || m.tick >= m.maxTicks {
				return m, nil
			}
			m.prevPC = m.cpu.regs.PC
			func() {
				defer func() {
					if r := recover(); r != nil {
						switch v := r.(type) {
						case haltSignal:
							m.done = Halt
						case *FatalError:
							m.err = v
							m.done = v.Reason()
						default:
							panic(r)
						}
					}
				}()
				cost := m.cpu.step()
				m.tick += cost
				m.cpu.checkAsyncInterrupts()
			}()
		}
	}
	return m, nil
}

// renderWord renders a single decoded instruction word, highlighting PC.
func (m debugModel) renderWord(idx int) string {
	addr := int32(idx * wordSize)
	marker := " "
	if addr == m.cpu.regs.PC {
		marker = ">"
	}
	instr, ok := m.cpu.wordAt(addr)
	if !ok {
		return fmt.Sprintf("%s %04x | (data)", marker, addr)
	}
	if instr.operand.present {
		return fmt.Sprintf("%s %04x | %-4s %s %d", marker, addr, instr.op, instr.operand.mode, instr.operand.arg)
	}
	return fmt.Sprintf("%s %04x | %-4s", marker, addr, instr.op)
}

func (m debugModel) program() string {
	lines := make([]string, 0, len(m.cpu.prog))
	lines = append(lines, "    addr | instruction")
	for i := range m.cpu.prog {
		if m.cpu.prog[i].valid {
			lines = append(lines, m.renderWord(i))
		}
	}
	return strings.Join(lines, "\n")
}

func (m debugModel) status() string {
	flags := "  "
	if m.cpu.regs.Z {
		flags = "Z "
	}
	if m.cpu.regs.N {
		flags += "N"
	}
	return fmt.Sprintf(`
AC: %d (%#x)
PC: %#x (was %#x)
IE: %v  InISR: %v
flags: %s
tick: %d / %d
`,
		m.cpu.regs.AC, m.cpu.regs.AC,
		m.cpu.regs.PC, m.prevPC,
		m.cpu.regs.IE, m.cpu.regs.InISR,
		flags,
		m.tick, m.maxTicks,
	)
}

func (m debugModel) View() string {
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.program(),
		m.status(),
	)
	footer := "space/j: step   q: quit"
	if m.done != "" {
		footer = fmt.Sprintf("terminated: %s", m.done)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, "", footer)
}

// Debug loads image and starts an interactive single-stepping TUI. On exit
// it prints a dump of the fatal error, if the run hit one.
func Debug(image asm.Image, maxTicks int) error {
	decoded, err := Load(image)
	if err != nil {
		return err
	}
	c := &cpu{mem: decoded.mem, ports: newPortTable(), prog: decoded.prog}
	c.regs.PC = decoded.startPC

	p := tea.NewProgram(debugModel{cpu: c, maxTicks: maxTicks})
	final, err := p.Run()
	if err != nil {
		return err
	}
	m := final.(debugModel)
	if m.err != nil {
		fmt.Println(spew.Sdump(m.err))
	}
	return nil
}
