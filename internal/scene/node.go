package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Node is an entry in the scene graph. Transforms are stored decomposed so
// animation tracks can write translation, rotation and scale independently.
type Node struct {
	// HOT DATA - touched every frame by animation and the renderer
	Position    mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	WorldMatrix mgl32.Mat4
	Meshes      []*Mesh
	Skin        *Skin

	// COLD DATA
	Name          string
	Parent        *Node
	Children      []*Node
	CastShadow    bool
	ReceiveShadow bool
	Visible       bool
}

func NewNode(name string) *Node {
	return &Node{
		Name:          name,
		Rotation:      mgl32.QuatIdent(),
		Scale:         mgl32.Vec3{1, 1, 1},
		WorldMatrix:   mgl32.Ident4(),
		ReceiveShadow: true,
		Visible:       true,
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.Parent != nil {
		child.Parent.Remove(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) Remove(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			return
		}
	}
}

// Traverse visits n and every descendant depth first, parents before children.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// FindByName returns the first node in the subtree with the given name.
func (n *Node) FindByName(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.FindByName(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *Node) SetPosition(x, y, z float32) {
	n.Position = mgl32.Vec3{x, y, z}
}

// SetScalar scales the node uniformly.
func (n *Node) SetScalar(s float32) {
	n.Scale = mgl32.Vec3{s, s, s}
}

// LocalMatrix composes translation * rotation * scale.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	scaleMatrix := mgl32.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z())
	rotationMatrix := n.Rotation.Normalize().Mat4()
	translationMatrix := mgl32.Translate3D(n.Position.X(), n.Position.Y(), n.Position.Z())
	return translationMatrix.Mul4(rotationMatrix).Mul4(scaleMatrix)
}

// UpdateWorldMatrix recomputes WorldMatrix for n and its subtree.
func (n *Node) UpdateWorldMatrix(parentWorld mgl32.Mat4) {
	n.WorldMatrix = parentWorld.Mul4(n.LocalMatrix())
	for _, c := range n.Children {
		c.UpdateWorldMatrix(n.WorldMatrix)
	}
}

// WorldPosition reads the translation of the last computed world matrix.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix.Col(3).Vec3()
}
